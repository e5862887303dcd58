// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package object

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/arxcore/services/arx/coordinate"
)

// ID identifies an object for its entire lifetime. IDs are allocated
// monotonically by the store and never reused. Zero is reserved and means
// "no object" (e.g. a root's parent).
type ID uint64

// Category is the coarse classification of an object, used for filtering
// when the closed type tag is not specific enough.
type Category int

const (
	// CategoryUnknown is the zero value for unclassified objects.
	CategoryUnknown Category = iota

	// CategoryElectrical covers power distribution and consumers.
	CategoryElectrical

	// CategoryMechanical covers rotating and moving equipment.
	CategoryMechanical

	// CategoryPlumbing covers fluid distribution.
	CategoryPlumbing

	// CategoryHVAC covers air handling and conditioning.
	CategoryHVAC

	// CategoryStructural covers load-bearing elements.
	CategoryStructural

	// CategorySpatial covers pure containment objects (rooms, floors).
	CategorySpatial

	// CategoryData covers network and signaling equipment.
	CategoryData
)

// String returns the category's display name.
func (c Category) String() string {
	switch c {
	case CategoryElectrical:
		return "electrical"
	case CategoryMechanical:
		return "mechanical"
	case CategoryPlumbing:
		return "plumbing"
	case CategoryHVAC:
		return "hvac"
	case CategoryStructural:
		return "structural"
	case CategorySpatial:
		return "spatial"
	case CategoryData:
		return "data"
	default:
		return "unknown"
	}
}

// TypeTag is the closed enumeration of well-known object types. New
// component types that don't fit the enumeration use TypeCustom plus the
// object's free-form Tag string; the store schema never changes for them.
type TypeTag int

const (
	// TypeCustom marks an object typed only by its Tag string.
	TypeCustom TypeTag = iota

	// TypeOutlet is an electrical receptacle.
	TypeOutlet

	// TypePanel is an electrical distribution panel.
	TypePanel

	// TypeBreaker is a circuit breaker.
	TypeBreaker

	// TypeDuct is an air duct segment.
	TypeDuct

	// TypeValve is a fluid valve.
	TypeValve

	// TypePipe is a fluid pipe segment.
	TypePipe

	// TypePump is a fluid pump.
	TypePump

	// TypeSensor is a measurement device.
	TypeSensor

	// TypeRoom is a containment space within a floor.
	TypeRoom

	// TypeFloor is a level within a building.
	TypeFloor

	// TypeBuilding is a single structure.
	TypeBuilding

	// TypeCampus is a site containing buildings.
	TypeCampus
)

// String returns the type tag's display name.
func (t TypeTag) String() string {
	switch t {
	case TypeOutlet:
		return "outlet"
	case TypePanel:
		return "panel"
	case TypeBreaker:
		return "breaker"
	case TypeDuct:
		return "duct"
	case TypeValve:
		return "valve"
	case TypePipe:
		return "pipe"
	case TypePump:
		return "pump"
	case TypeSensor:
		return "sensor"
	case TypeRoom:
		return "room"
	case TypeFloor:
		return "floor"
	case TypeBuilding:
		return "building"
	case TypeCampus:
		return "campus"
	default:
		return "custom"
	}
}

// ValueKind discriminates the Value union.
type ValueKind int

const (
	// ValueString holds a string.
	ValueString ValueKind = iota

	// ValueInt holds an int64.
	ValueInt

	// ValueFloat holds a float64.
	ValueFloat

	// ValueBool holds a bool.
	ValueBool
)

// Value is a typed property value. Property maps are string key to Value,
// keys unique, insertion order irrelevant.
type Value struct {
	Kind  ValueKind `json:"kind"`
	Str   string    `json:"str,omitempty"`
	Int   int64     `json:"int,omitempty"`
	Float float64   `json:"float,omitempty"`
	Bool  bool      `json:"bool,omitempty"`
}

// StringValue builds a string Value.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// IntValue builds an int64 Value.
func IntValue(i int64) Value { return Value{Kind: ValueInt, Int: i} }

// FloatValue builds a float64 Value.
func FloatValue(f float64) Value { return Value{Kind: ValueFloat, Float: f} }

// BoolValue builds a bool Value.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// AsFloat returns the value as a float64 for numeric aggregation.
// Only int and float values are numeric.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case ValueInt:
		return float64(v.Int), true
	case ValueFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// ArxObject is an addressable physical infrastructure entity: anything from
// a circuit trace to a campus. Position and extent are exact integer
// nanometers; containment is a forest via Parent/Children.
//
// Instances returned by the store are snapshots. Mutating a snapshot has no
// effect on the store; use the mutation API.
type ArxObject struct {
	// ID is the immutable store-assigned identifier.
	ID ID `json:"id"`

	// Type is the closed type tag; TypeCustom defers to Tag.
	Type TypeTag `json:"type"`

	// Tag refines TypeCustom objects (e.g. "heat-exchanger").
	Tag string `json:"tag,omitempty"`

	// Category is the coarse classification.
	Category Category `json:"category"`

	// Make, Model and Serial identify the physical article, when known.
	Make   string `json:"make,omitempty"`
	Model  string `json:"model,omitempty"`
	Serial string `json:"serial,omitempty"`

	// Position is the minimum corner of the object's bounding box.
	Position coordinate.Position `json:"position"`

	// Dimension is the object's bounding extent.
	Dimension coordinate.Dimension `json:"dimension"`

	// Rotation is the yaw about the vertical axis.
	Rotation coordinate.Rotation `json:"rotation"`

	// Band is the object's scale band. Zero-value objects derive it from
	// Dimension at create time.
	Band coordinate.Band `json:"band"`

	// Parent is the containing object, or 0 for roots.
	Parent ID `json:"parent,omitempty"`

	// Children holds contained object IDs in insertion order.
	Children []ID `json:"children,omitempty"`

	// Properties is the open key/value extension point.
	Properties map[string]Value `json:"properties,omitempty"`

	// Lifecycle timestamps. Created is set by the store; the others are
	// ingestion-supplied and may be zero.
	Created      time.Time `json:"created"`
	Installed    time.Time `json:"installed,omitzero"`
	LastServiced time.Time `json:"last_serviced,omitzero"`
	NextService  time.Time `json:"next_service,omitzero"`

	// Tombstoned marks the object as soft-deleted. Tombstoned objects stay
	// resolvable but reject mutations and drop out of queries.
	Tombstoned bool `json:"tombstoned,omitempty"`

	// ScaleWarning records that Band disagreed with Dimension by more than
	// one band at create time. A data-quality flag, never an error.
	ScaleWarning bool `json:"scale_warning,omitempty"`
}

// Box returns the object's axis-aligned bounding box.
func (o *ArxObject) Box() (coordinate.Box, error) {
	return coordinate.NewBox(o.Position, o.Dimension)
}

// clone returns a deep copy safe to hand to readers.
func (o *ArxObject) clone() *ArxObject {
	cp := *o
	if o.Children != nil {
		cp.Children = make([]ID, len(o.Children))
		copy(cp.Children, o.Children)
	}
	if o.Properties != nil {
		cp.Properties = make(map[string]Value, len(o.Properties))
		for k, v := range o.Properties {
			cp.Properties[k] = v
		}
	}
	return &cp
}

// EventKind identifies the mutation that produced a change event.
type EventKind int

const (
	// EventCreated fires after a successful create.
	EventCreated EventKind = iota

	// EventUpdated fires after a property update.
	EventUpdated

	// EventReparented fires after a reparent.
	EventReparented

	// EventTombstoned fires after a tombstone, once per affected object.
	EventTombstoned
)

// String returns the event kind's display name.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventReparented:
		return "reparented"
	case EventTombstoned:
		return "tombstoned"
	default:
		return "unknown"
	}
}

// Event is the change notification emitted by the store after every
// successful mutation. Events are delivered synchronously inside the write
// section, in registration order, so observers are consistent with the store
// before the mutation returns.
type Event struct {
	// Kind is the mutation type.
	Kind EventKind `json:"kind"`

	// ID is the affected object.
	ID ID `json:"id"`

	// EventID correlates the event across observers and the journal.
	EventID uuid.UUID `json:"event_id"`

	// Time is when the mutation was applied.
	Time time.Time `json:"time"`

	// Object is a snapshot of the object after the mutation. Present on
	// every event so the change journal can replay state without reading
	// back through the store.
	Object *ArxObject `json:"object,omitempty"`
}

// Observer receives change events. Implementations must not call back into
// the store's mutation API from the handler (the write lock is held) and
// must not block.
type Observer interface {
	OnObjectEvent(Event)
}
