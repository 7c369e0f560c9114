package uat

import (
	"encoding/json"
	"fmt"
)

// jsonPosition/jsonSize mirror Position/AircraftSize but with the
// lowercase field names the wire format uses.
type jsonPosition struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type jsonSize struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

type jsonMetadata struct {
	Rssi         float64  `json:"rssi"`
	Errors       int      `json:"errors"`
	ReceivedAt   *float64 `json:"received_at,omitempty"`
	RawTimestamp *uint64  `json:"raw_timestamp,omitempty"`
}

// jsonMessage is the wire representation of Message: every field is
// optional (omitempty) except address_qualifier, address, and
// metadata, which are always present.
type jsonMessage struct {
	AddressQualifier string  `json:"address_qualifier"`
	Address          string  `json:"address"`
	Position         *jsonPosition `json:"position,omitempty"`

	PressureAltitude *int                    `json:"pressure_altitude,omitempty"`
	GeometricAltitude *int                   `json:"geometric_altitude,omitempty"`
	NIC               *uint32                `json:"nic,omitempty"`
	Rc                *float64               `json:"rc,omitempty"`
	AirGroundState    *string                `json:"airground_state,omitempty"`
	NorthVelocity     *int                   `json:"north_velocity,omitempty"`
	EastVelocity      *int                   `json:"east_velocity,omitempty"`
	VVSrc             *string                `json:"vv_src,omitempty"`
	VerticalVelocityBarometric *int          `json:"vertical_velocity_barometric,omitempty"`
	VerticalVelocityGeometric  *int          `json:"vertical_velocity_geometric,omitempty"`
	GroundSpeed       *float64               `json:"ground_speed,omitempty"`
	MagneticHeading   *float64               `json:"magnetic_heading,omitempty"`
	TrueHeading       *float64               `json:"true_heading,omitempty"`
	TrueTrack         *float64               `json:"true_track,omitempty"`
	AircraftSize      *jsonSize              `json:"aircraft_size,omitempty"`
	GPSLateralOffset  *float64               `json:"gps_lateral_offset,omitempty"`
	GPSLongitudinalOffset *float64           `json:"gps_longitudinal_offset,omitempty"`
	GPSPositionOffsetApplied *bool           `json:"gps_position_offset_applied,omitempty"`
	UTCCoupled        *bool                  `json:"utc_coupled,omitempty"`
	UplinkFeedback    *uint32                `json:"uplink_feedback,omitempty"`
	TISBSiteID        *uint32                `json:"tisb_site_id,omitempty"`

	EmitterCategory *string `json:"emitter_category,omitempty"`
	Callsign        *string `json:"callsign,omitempty"`
	FlightplanID    *string `json:"flightplan_id,omitempty"`
	Emergency       *string `json:"emergency,omitempty"`
	MOPSVersion     *uint32 `json:"mops_version,omitempty"`
	SIL             *uint32 `json:"sil,omitempty"`
	TransmitMSO     *uint32 `json:"transmit_mso,omitempty"`
	SDA             *uint32 `json:"sda,omitempty"`
	NACp            *uint32 `json:"nac_p,omitempty"`
	NACv            *uint32 `json:"nac_v,omitempty"`
	NICBaro         *uint32 `json:"nic_baro,omitempty"`

	CapabilityCodes  *CapabilityCodes  `json:"capability_codes,omitempty"`
	OperationalModes *OperationalModes `json:"operational_modes,omitempty"`

	SILSupplement *string `json:"sil_supplement,omitempty"`
	GVA           *uint32 `json:"gva,omitempty"`
	SingleAntenna *bool   `json:"single_antenna,omitempty"`
	NICSupplement *bool   `json:"nic_supplement,omitempty"`

	SelectedAltitudeType         *string  `json:"selected_altitude_type,omitempty"`
	SelectedAltitudeMCP          *int     `json:"selected_altitude_mcp,omitempty"`
	SelectedAltitudeFMS          *int     `json:"selected_altitude_fms,omitempty"`
	BarometricPressureSetting    *float64 `json:"barometric_pressure_setting,omitempty"`
	SelectedHeading              *float64 `json:"selected_heading,omitempty"`
	ModeIndicators               *ModeIndicators `json:"mode_indicators,omitempty"`

	Metadata jsonMetadata `json:"metadata"`
}

func strPtr(s fmt.Stringer) *string {
	v := s.String()
	return &v
}

// MarshalJSON emits only the fields that are present: the
// optional-valued struct fields map straight onto omitempty pointers,
// while a handful of fields (address, emitter category, enums)
// serialize into the snake_case string/hex forms the wire format
// uses instead of their raw integer representation.
func (m *Message) MarshalJSON() ([]byte, error) {
	out := jsonMessage{
		AddressQualifier: m.AddressQualifier.String(),
		Address:          fmt.Sprintf("%06x", m.Address),
	}

	if m.Position != nil {
		out.Position = &jsonPosition{Lat: m.Position.Lat, Lon: m.Position.Lon}
	}
	out.PressureAltitude = m.PressureAltitudeFt
	out.GeometricAltitude = m.GeometricAltitudeFt
	out.NIC = m.NIC
	out.Rc = m.RcMeters
	if m.AirGroundState != nil {
		out.AirGroundState = strPtr(*m.AirGroundState)
	}
	out.NorthVelocity = m.NorthVelocityKt
	out.EastVelocity = m.EastVelocityKt
	if m.VerticalVelocitySource != nil {
		out.VVSrc = strPtr(*m.VerticalVelocitySource)
	}
	out.VerticalVelocityBarometric = m.VerticalVelocityBarometric
	out.VerticalVelocityGeometric = m.VerticalVelocityGeometric
	out.GroundSpeed = m.GroundSpeedKt
	out.MagneticHeading = m.MagneticHeadingDeg
	out.TrueHeading = m.TrueHeadingDeg
	out.TrueTrack = m.TrueTrackDeg
	if m.AircraftSize != nil {
		out.AircraftSize = &jsonSize{Length: m.AircraftSize.Length, Width: m.AircraftSize.Width}
	}
	out.GPSLateralOffset = m.GPSLateralOffsetM
	out.GPSLongitudinalOffset = m.GPSLongitudinalOffsetM
	out.GPSPositionOffsetApplied = m.GPSPositionOffsetApplied
	out.UTCCoupled = m.UTCCoupled
	out.UplinkFeedback = m.UplinkFeedback
	out.TISBSiteID = m.TISBSiteID

	if m.EmitterCategory != nil {
		c := *m.EmitterCategory
		s := fmt.Sprintf("%c%d", 'A'+(c>>3), c&7)
		out.EmitterCategory = &s
	}
	out.Callsign = m.Callsign
	out.FlightplanID = m.FlightplanID
	if m.Emergency != nil {
		out.Emergency = strPtr(*m.Emergency)
	}
	out.MOPSVersion = m.MOPSVersion
	out.SIL = m.SIL
	out.TransmitMSO = m.TransmitMSO
	out.SDA = m.SDA
	out.NACp = m.NACp
	out.NACv = m.NACv
	out.NICBaro = m.NICBaro
	out.CapabilityCodes = m.CapabilityCodes
	out.OperationalModes = m.OperationalModes
	if m.SILSupplement != nil {
		out.SILSupplement = strPtr(*m.SILSupplement)
	}
	out.GVA = m.GVA
	out.SingleAntenna = m.SingleAntenna
	out.NICSupplement = m.NICSupplement

	if m.SelectedAltitudeType != nil {
		out.SelectedAltitudeType = strPtr(*m.SelectedAltitudeType)
	}
	out.SelectedAltitudeMCP = m.SelectedAltitudeMCPFt
	out.SelectedAltitudeFMS = m.SelectedAltitudeFMSFt
	out.BarometricPressureSetting = m.BarometricPressureSettingHPa
	out.SelectedHeading = m.SelectedHeadingDeg
	out.ModeIndicators = m.ModeIndicators

	out.Metadata = jsonMetadata{
		Rssi:   roundN(m.RssiDbfs, 1),
		Errors: m.Errors,
	}
	if m.ReceivedAtMs != 0 {
		sec := float64(m.ReceivedAtMs) / 1000.0
		out.Metadata.ReceivedAt = &sec
	}
	if m.RawTimestamp != 0 {
		ts := m.RawTimestamp
		out.Metadata.RawTimestamp = &ts
	}

	return json.Marshal(out)
}
