package catalog

// DefaultTables is the reference data of the current deployment.
func DefaultTables() Tables {
	return Tables{
		Groups: []GroupSpec{
			{Name: "Ess_HoodiePant", Brand: "ESSENTIALS", Types: []string{"HOODIE", "PANT"}},
			{Name: "Ess_TeeShort", Brand: "ESSENTIALS", Types: []string{"TEE", "SHORTS"}},
			{Name: "Spdr_HoodiePant", Brand: "SP5DER", Types: []string{"HOODIE", "PANT"}},
			{Name: "Den_HoodiePant", Brand: "DENIM TEARS", Types: []string{"HOODIE", "PANT"}},
			{Name: "Eric_EmanShorts", Brand: "ERIC EMANUEL", Types: []string{"SHORTS"}},
			{Name: "YZY_Slides", Brand: "YZY", Types: []string{"SLIDES"}},
		},
		Brands: []BrandSpec{
			{
				Name:   "ESSENTIALS",
				Types:  []string{"HOODIE", "PANT", "TEE", "SHORTS"},
				Colors: []string{"B22", "L/O", "D/O", "1977 IRON", "1977 D/O", "BLACK"},
				Sizes:  []string{"XS", "S", "M", "L"},
			},
			{
				Name:   "DENIM TEARS",
				Types:  []string{"HOODIE", "PANT"},
				Colors: []string{"BLACK", "GREY"},
				Sizes:  []string{"S", "M", "L"},
			},
			{
				Name:   "SP5DER",
				Types:  []string{"HOODIE", "PANT"},
				Colors: []string{"PINK", "BLUE", "BLACK"},
				Sizes:  []string{"S", "M", "L"},
			},
			{
				Name:   "ERIC EMANUEL",
				Types:  []string{"SHORTS"},
				Colors: []string{"BLACK", "NAVY", "GREY", "LIGHT BLUE", "RED", "WHITE"},
				Sizes:  []string{"XS", "S", "M", "L", "XL"},
			},
			{
				Name:   "YZY",
				Types:  []string{"SLIDES"},
				Colors: []string{"ONYX", "BONE"},
				Sizes:  []string{"4", "5", "6", "7", "8", "9", "10", "11", "12"},
			},
		},
		DefaultSizes: []string{"S", "M", "L"},
		SizeOrder: map[string]int{
			"XXS": 0, "XS": 1, "S": 2, "M": 3, "L": 4, "XL": 5, "XXL": 6, "ONE SIZE": 99,
			"4": 104, "5": 105, "6": 106, "7": 107, "8": 108, "9": 109, "10": 110, "11": 111, "12": 112,
		},
	}
}

// Default returns the built-in catalog.
func Default() *Static {
	c, err := New(DefaultTables())
	if err != nil {
		panic(err)
	}
	return c
}
