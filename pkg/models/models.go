// Package models defines the measurement entities read from persistence
// and the JSON-encodable result shapes produced by the analytics core.
package models

import "time"

// MeasurementType tags what a MeasurementItem quantifies.
type MeasurementType string

const (
	ProspectiveTouchVoltage MeasurementType = "prospective_touch_voltage"
	TouchVoltage            MeasurementType = "touch_voltage"
	EarthPotentialRise      MeasurementType = "earth_potential_rise"
	StepVoltage             MeasurementType = "step_voltage"
	TransferredPotential    MeasurementType = "transferred_potential"
	EarthFaultCurrent       MeasurementType = "earth_fault_current"
	EarthingCurrent         MeasurementType = "earthing_current"
	EarthingResistance      MeasurementType = "earthing_resistance"
	EarthingImpedance       MeasurementType = "earthing_impedance"
	SoilResistivity         MeasurementType = "soil_resistivity"
)

// MethodType is how a measurement campaign injected its test current.
type MethodType string

const (
	StagedFaultTest           MethodType = "staged_fault_test"
	InjectionRemoteSubstation MethodType = "injection_remote_substation"
	InjectionEarthElectrode   MethodType = "injection_earth_electrode"
)

// Location is the geographic context of a measurement.
type Location struct {
	ID        int64    `db:"id" json:"id"`
	Name      string   `db:"name" json:"name"`
	Latitude  *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64 `db:"longitude" json:"longitude,omitempty"`
	Altitude  *float64 `db:"altitude" json:"altitude,omitempty"`
}

// Measurement is a named collection of items sharing a location, method
// and asset context.
type Measurement struct {
	ID                 int64      `db:"id" json:"id"`
	Timestamp          time.Time  `db:"timestamp" json:"timestamp"`
	LocationID         *int64     `db:"location_id" json:"location_id,omitempty"`
	Method             MethodType `db:"method" json:"method"`
	AssetType          string     `db:"asset_type" json:"asset_type"`
	VoltageLevelKV     *float64   `db:"voltage_level_kv" json:"voltage_level_kv,omitempty"`
	FaultResistanceOhm *float64   `db:"fault_resistance_ohm" json:"fault_resistance_ohm,omitempty"`
	Operator           *string    `db:"operator" json:"operator,omitempty"`
	Description        *string    `db:"description" json:"description,omitempty"`

	Items []MeasurementItem `db:"-" json:"items"`
}

// MeasurementItem is one scalar or phasor reading. Optional fields are
// nil when absent; at least one of Value or (ValueReal, ValueImag) is
// populated after normalization by the persistence layer.
type MeasurementItem struct {
	ID                          int64           `db:"id" json:"id"`
	MeasurementID               int64           `db:"measurement_id" json:"measurement_id"`
	Type                        MeasurementType `db:"measurement_type" json:"measurement_type"`
	Value                       *float64        `db:"value" json:"value,omitempty"`
	ValueReal                   *float64        `db:"value_real" json:"value_real,omitempty"`
	ValueImag                   *float64        `db:"value_imag" json:"value_imag,omitempty"`
	ValueAngleDeg               *float64        `db:"value_angle_deg" json:"value_angle_deg,omitempty"`
	Unit                        string          `db:"unit" json:"unit"`
	FrequencyHz                 *float64        `db:"frequency_hz" json:"frequency_hz,omitempty"`
	MeasurementDistanceM        *float64        `db:"measurement_distance_m" json:"measurement_distance_m,omitempty"`
	DistanceToCurrentInjectionM *float64        `db:"distance_to_current_injection_m" json:"distance_to_current_injection_m,omitempty"`
	Description                 *string         `db:"description" json:"description,omitempty"`
}

// RealImag is one complex impedance sample; either side may be absent.
type RealImag struct {
	Real *float64 `json:"real"`
	Imag *float64 `json:"imag"`
}

// DistanceRecord is one detailed point of a distance profile.
type DistanceRecord struct {
	DistanceM   float64  `json:"distance"`
	Value       float64  `json:"value"`
	FrequencyHz *float64 `json:"frequency,omitempty"`
}

// VoltageEPR holds the per-ampere voltage ratios of one measurement:
// the earth potential rise and the min/max prospective and effective
// touch voltage ratios. The ratio fields are nil when the measurement
// carries no matching voltage items.
type VoltageEPR struct {
	EPR    float64  `json:"epr"`
	VTPMin *float64 `json:"vtp_min,omitempty"`
	VTPMax *float64 `json:"vtp_max,omitempty"`
	VTMin  *float64 `json:"vt_min,omitempty"`
	VTMax  *float64 `json:"vt_max,omitempty"`
}
