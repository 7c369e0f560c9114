package uat

import (
	"fmt"
	"math"
	"strings"

	"uat978/internal/message"
)

func roundN(v float64, dp int) float64 {
	scale := math.Pow(10, float64(dp))
	return math.Round(v*scale) / scale
}

// Decode parses a downlink RawMessage's payload into a Message. It is
// a pure function: no I/O, no retained state. Sub-element dispatch
// follows DO-282B Table 2-10.
func Decode(m message.RawMessage) (*Message, error) {
	if !m.IsDownlink() {
		return nil, fmt.Errorf("uat: %s is not a downlink message", m.Kind)
	}

	p := payload(m.Payload)
	msg := &Message{
		ReceivedAtMs: m.ReceivedAtMs,
		RawTimestamp: m.RawTimestamp,
		Errors:       m.CorrectedErrors,
		RssiDbfs:     m.RssiDbfs,
	}

	// HEADER, 2.2.4.5.1.
	msg.PayloadType = p.Bits(1, 1, 1, 5)
	msg.AddressQualifier = AddressQualifier(p.Bits(1, 6, 1, 8))
	msg.Address = p.Bits(2, 1, 4, 8)

	switch msg.PayloadType {
	case 0:
		decodeSV(p, msg)
	case 1:
		decodeSV(p, msg)
		decodeMS(p, msg)
		decodeAUXSV(p, msg)
	case 2:
		decodeSV(p, msg)
		decodeAUXSV(p, msg)
	case 3:
		decodeSV(p, msg)
		decodeMS(p, msg)
		decodeTS(p, msg, 30)
	case 4:
		decodeSV(p, msg)
		decodeTS(p, msg, 30)
	case 5:
		decodeSV(p, msg)
		decodeAUXSV(p, msg)
	case 6:
		decodeSV(p, msg)
		decodeTS(p, msg, 25)
		decodeAUXSV(p, msg)
	case 7, 8, 9, 10:
		decodeSV(p, msg)
	default:
		// 11..31: HEADER only.
	}

	// The containment bound depends on the MS element's NIC supplement
	// bit, so it can only be resolved once every element has decoded.
	if msg.NIC != nil {
		if rc := Rc(*msg.NIC, msg.NICSupplement); rc > 0 {
			msg.RcMeters = &rc
		}
	}

	return msg, nil
}

// aircraftSizes is DO-282B Table 2-35, index by the 4-bit AV_SIZE field.
var aircraftSizes = [16]AircraftSize{
	{0, 0},
	{15, 23},
	{25, 28.5},
	{25, 34},
	{35, 33},
	{35, 38},
	{45, 39.5},
	{45, 45},
	{55, 45},
	{55, 52},
	{65, 59.5},
	{65, 67},
	{75, 72.5},
	{75, 80},
	{85, 80},
	{85, 90},
}

// decodeSV is 2.2.4.5.2 (ADS-B STATE VECTOR) / 2.2.4.5.3 (TIS-B/ADS-B
// STATE VECTOR), the element present on every payload type this
// decoder gives fields for.
func decodeSV(p payload, msg *Message) {
	rawLat := p.Bits(5, 1, 7, 7)
	rawLon := p.Bits(7, 8, 10, 7)

	rawAlt := p.Bits(11, 1, 12, 4)
	if rawAlt != 0 {
		altitude := int(rawAlt-41) * 25
		if p.Bit(10, 8) { // 2.2.4.5.2.2 "ALTITUDE TYPE"
			msg.GeometricAltitudeFt = &altitude
		} else {
			msg.PressureAltitudeFt = &altitude
		}
	}

	nic := p.Bits(12, 5, 12, 8)
	msg.NIC = &nic

	if rawLat != 0 || rawLon != 0 || nic != 0 {
		// North and south pole encode identically; we report north.
		lat := float64(rawLat) * 360.0 / 16777216.0
		if lat > 90 {
			lat -= 180
		}
		lon := float64(rawLon) * 360.0 / 16777216.0
		if lon > 180 {
			lon -= 360
		}
		msg.Position = &Position{Lat: roundN(lat, 5), Lon: roundN(lon, 5)}
	}

	ags := AirGroundState(p.Bits(13, 1, 13, 2))
	msg.AirGroundState = &ags

	// bit 13,3 reserved.

	switch ags {
	case AirGroundStateAirborneSubsonic, AirGroundStateAirborneSupersonic:
		supersonic := 1
		if ags == AirGroundStateAirborneSupersonic {
			supersonic = 4
		}
		nsSign := 1
		if p.Bit(13, 4) {
			nsSign = -1
		}
		if rawNS := p.Bits(13, 5, 14, 6); rawNS != 0 {
			v := supersonic * nsSign * int(rawNS-1)
			msg.NorthVelocityKt = &v
		}

		ewSign := 1
		if p.Bit(14, 7) {
			ewSign = -1
		}
		if rawEW := p.Bits(14, 8, 16, 1); rawEW != 0 {
			v := supersonic * ewSign * int(rawEW-1)
			msg.EastVelocityKt = &v
		}

		if msg.NorthVelocityKt != nil && msg.EastVelocityKt != nil {
			nv, ev := float64(*msg.NorthVelocityKt), float64(*msg.EastVelocityKt)
			gs := roundN(math.Sqrt(nv*nv+ev*ev), 1)
			msg.GroundSpeedKt = &gs
			angle := math.Atan2(ev, nv) * 180.0 / math.Pi
			if angle < 0 {
				angle += 360.0
			}
			tt := roundN(angle, 1)
			msg.TrueTrackDeg = &tt
		}

		vvSrc := VerticalVelocitySource(p.Bits(16, 2, 16, 2))
		msg.VerticalVelocitySource = &vvSrc
		vvSign := 1
		if p.Bit(16, 3) {
			vvSign = -1
		}
		if rawVV := p.Bits(16, 4, 17, 4); rawVV != 0 {
			vv := vvSign * int(rawVV-1) * 64
			switch vvSrc {
			case VerticalVelocitySourceBarometric:
				msg.VerticalVelocityBarometric = &vv
			case VerticalVelocitySourceGeometric:
				msg.VerticalVelocityGeometric = &vv
			}
		}

	case AirGroundStateOnGround:
		// 13,4 reserved.
		if rawGS := p.Bits(13, 5, 14, 6); rawGS != 0 {
			gs := float64(rawGS - 1)
			msg.GroundSpeedKt = &gs
		}

		tahType := p.Bits(14, 7, 14, 8)
		angle := roundN(float64(p.Bits(15, 1, 16, 1))*360.0/512.0, 1)
		switch tahType { // 2.2.4.5.2.6.4 / Table 2-28
		case 0:
			// data unavailable.
		case 1:
			msg.TrueTrackDeg = &angle
		case 2:
			msg.MagneticHeadingDeg = &angle
		case 3:
			msg.TrueHeadingDeg = &angle
		}

		if rawAvSize := p.Bits(16, 2, 16, 5); rawAvSize != 0 {
			size := aircraftSizes[rawAvSize]
			msg.AircraftSize = &size
		}

		if p.Bit(16, 7) {
			// Longitudinal GPS offset.
			if rawGPSLong := p.Bits(16, 8, 17, 4); rawGPSLong != 0 {
				if rawGPSLong == 1 {
					applied := true
					msg.GPSPositionOffsetApplied = &applied
				} else {
					applied := false
					msg.GPSPositionOffsetApplied = &applied
					off := float64(rawGPSLong-1) * 2
					msg.GPSLongitudinalOffsetM = &off
				}
			}
		} else {
			// Lateral GPS offset; left is negative by convention.
			if rawGPSLat := p.Bits(16, 8, 17, 2); rawGPSLat != 0 {
				var off float64
				if rawGPSLat <= 3 {
					off = float64(rawGPSLat) * -2
				} else {
					off = float64(rawGPSLat-4) * 2
				}
				msg.GPSLateralOffsetM = &off
			}
		}
	}

	switch msg.AddressQualifier {
	case AddressQualifierADSBICAO, AddressQualifierADSBOther, AddressQualifierVehicle, AddressQualifierFixedBeacon:
		utc := p.Bit(17, 5)
		msg.UTCCoupled = &utc
		fb := p.Bits(17, 6, 17, 8)
		msg.UplinkFeedback = &fb
	case AddressQualifierTISBICAO, AddressQualifierTISBTrackfile, AddressQualifierADSROther:
		site := p.Bits(17, 5, 17, 8)
		msg.TISBSiteID = &site
	}
}

// modeStatusAlphabet is the base-40 alphabet used for MS callsign and
// flight-plan-ID decoding.
const modeStatusAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ *??"

// decodeMS is 2.2.4.5.4, the MODE STATUS element.
func decodeMS(p payload, msg *Message) {
	raw1 := p.Bits(18, 1, 19, 8)
	raw2 := p.Bits(20, 1, 21, 8)
	raw3 := p.Bits(22, 1, 23, 8)

	category := (raw1 / 1600) % 40
	msg.EmitterCategory = &category

	var b strings.Builder
	b.WriteByte(modeStatusAlphabet[(raw1/40)%40])
	b.WriteByte(modeStatusAlphabet[raw1%40])
	b.WriteByte(modeStatusAlphabet[(raw2/1600)%40])
	b.WriteByte(modeStatusAlphabet[(raw2/40)%40])
	b.WriteByte(modeStatusAlphabet[raw2%40])
	b.WriteByte(modeStatusAlphabet[(raw3/1600)%40])
	b.WriteByte(modeStatusAlphabet[(raw3/40)%40])
	b.WriteByte(modeStatusAlphabet[raw3%40])

	s := strings.TrimRight(b.String(), " *")
	if s != "" {
		if p.Bit(27, 7) { // CSID field: 1 = callsign, 0 = flight plan ID.
			msg.Callsign = &s
		} else {
			msg.FlightplanID = &s
		}
	}

	emergency := EmergencyPriorityStatus(p.Bits(24, 1, 24, 3))
	msg.Emergency = &emergency
	mops := p.Bits(24, 4, 24, 6)
	msg.MOPSVersion = &mops
	sil := p.Bits(24, 7, 24, 8)
	msg.SIL = &sil
	mso := p.Bits(25, 1, 25, 6)
	msg.TransmitMSO = &mso
	sda := p.Bits(25, 7, 25, 8)
	msg.SDA = &sda
	nacP := p.Bits(26, 1, 26, 4)
	msg.NACp = &nacP
	nacV := p.Bits(26, 5, 26, 7)
	msg.NACv = &nacV
	nicBaro := p.Bits(26, 8, 26, 8)
	msg.NICBaro = &nicBaro

	msg.CapabilityCodes = &CapabilityCodes{
		UATIn:           p.Bit(27, 1),
		ESIn:            p.Bit(27, 2),
		TCASOperational: p.Bit(27, 3),
	}
	msg.OperationalModes = &OperationalModes{
		TCASRAActive: p.Bit(27, 4),
		IdentActive:  p.Bit(27, 5),
		ATCServices:  p.Bit(27, 6),
	}
	silSupplement := SILSupplement(p.Bits(27, 8, 27, 8))
	msg.SILSupplement = &silSupplement
	gva := p.Bits(28, 1, 28, 2)
	msg.GVA = &gva
	singleAntenna := p.Bit(28, 3)
	msg.SingleAntenna = &singleAntenna
	nicSupplement := p.Bit(28, 4)
	msg.NICSupplement = &nicSupplement
	// 28,5 .. 29,8 reserved.
}

// decodeTS is 2.2.4.5.6, the TARGET STATE element. startbyte is 30 for
// payload types 3/4, 25 for payload type 6.
func decodeTS(p payload, msg *Message, startbyte int) {
	rawAltitude := p.Bits(startbyte+0, 2, startbyte+1, 4)
	if rawAltitude != 0 {
		sat := SelectedAltitudeType(p.Bits(startbyte+0, 1, startbyte+0, 1))
		msg.SelectedAltitudeType = &sat
		switch sat {
		case SelectedAltitudeTypeMCPFCU:
			alt := int(rawAltitude-1) * 32
			msg.SelectedAltitudeMCPFt = &alt
		case SelectedAltitudeTypeFMS:
			alt := int(rawAltitude-1) * 32
			msg.SelectedAltitudeFMSFt = &alt
		}
	}

	if rawBps := p.Bits(startbyte+1, 5, startbyte+2, 5); rawBps != 0 {
		bps := 800 + float64(rawBps-1)*0.8
		msg.BarometricPressureSettingHPa = &bps
	}

	if p.Bit(startbyte+2, 6) {
		sign := 1.0
		if p.Bit(startbyte+2, 7) {
			sign = -1.0
		}
		heading := roundN(float64(p.Bits(startbyte+2, 8, startbyte+3, 7))*180.0/256.0, 1)
		sh := sign * heading
		msg.SelectedHeadingDeg = &sh
	}

	if p.Bit(startbyte+3, 8) {
		msg.ModeIndicators = &ModeIndicators{
			Autopilot:    p.Bit(startbyte+4, 1),
			VNAV:         p.Bit(startbyte+4, 2),
			AltitudeHold: p.Bit(startbyte+4, 3),
			Approach:     p.Bit(startbyte+4, 4),
			LNAV:         p.Bit(startbyte+4, 5),
		}
	}
	// startbyte+4,6 .. startbyte+4,8 reserved.
}

// decodeAUXSV is 2.2.4.5.5, the AUXILIARY STATE VECTOR element: it
// fills whichever of pressure/geometric altitude the primary SV
// element's 10,8 selector bit did not already populate.
func decodeAUXSV(p payload, msg *Message) {
	rawAlt := p.Bits(30, 1, 31, 4)
	if rawAlt == 0 {
		return
	}
	altitude := int(rawAlt-41) * 25
	if p.Bit(10, 8) {
		msg.PressureAltitudeFt = &altitude
	} else {
		msg.GeometricAltitudeFt = &altitude
	}
}
