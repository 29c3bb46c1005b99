package domain

// Sectors maps GRA2PES emission sector codes to descriptions. Used for
// configuration validation; "total" is the cross-sector aggregate published
// alongside the individual sectors.
var Sectors = map[string]string{
	"AG":            "Agriculture",
	"AVIATION":      "Aviation",
	"COMM":          "Commercial",
	"COOKING":       "Cooking",
	"EGU":           "Electricity Generation",
	"FUG":           "Fugitive",
	"INDF":          "Industrial fuel",
	"INDP":          "Industrial processes",
	"INTERNATIONAL": "International",
	"OFFROAD":       "Off-road vehicles",
	"OG":            "Oil and gas",
	"ONROAD_DSL":    "On-road diesel",
	"ONROAD_GAS":    "On-road gasoline",
	"RAIL":          "Rail",
	"RES":           "Residential",
	"SHIPPING":      "Shipping",
	"VCP":           "Volatile chemical products",
	"WASTE":         "Waste",
	"total":         "Total emissions across sectors",
}

// ValidSector reports whether code is a known GRA2PES sector.
func ValidSector(code string) bool {
	_, ok := Sectors[code]
	return ok
}
