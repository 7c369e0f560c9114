package uat

// rcLookup is the NIC -> horizontal containment radius (meters) table
// from DO-282B; Decode reports the bound alongside the raw integrity
// category.
var rcLookup = map[uint32]float64{
	1:  37040,
	2:  14816,
	3:  7408,
	4:  3704,
	5:  1852,
	7:  370.4,
	8:  185.2,
	9:  75,
	10: 25,
	11: 7.5,
}

// Rc returns the horizontal containment radius bound for nic.
// nicSupplement is the NIC-supplement bit if known (nil otherwise);
// it only disambiguates NIC=6, which otherwise maps to the larger of
// its two possible containment radii. Rc returns 0 for NIC values
// with no defined bound (0 and 12-15).
func Rc(nic uint32, nicSupplement *bool) float64 {
	if nic == 6 {
		if nicSupplement != nil && *nicSupplement {
			return 555.6
		}
		return 1111.2
	}
	return rcLookup[nic]
}
