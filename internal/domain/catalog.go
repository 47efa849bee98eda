package domain

// StandardCatalog is the default sellable-supplies assortment loaded into
// every new branch. Stock is the initial level; ids are assigned per
// branch at insert time.
func StandardCatalog() []InventoryItem {
	return []InventoryItem{
		{Name: "Dosis Jabón", PriceCents: 1500, CostCents: 600, Stock: 50, Icon: "🧼"},
		{Name: "Dosis Suavitel", PriceCents: 1500, CostCents: 650, Stock: 45, Icon: "🌸"},
		{Name: "Dosis Cloro", PriceCents: 1000, CostCents: 400, Stock: 30, Icon: "🧴"},
		{Name: "Bolsa Grande", PriceCents: 1500, CostCents: 500, Stock: 100, Icon: "🛍️"},
		{Name: "Bolsa Jumbo", PriceCents: 2500, CostCents: 900, Stock: 60, Icon: "🎒"},
	}
}

// DefaultMachines is the machine template installed when a branch is
// created: three washers and three dryers, all available.
func DefaultMachines() []Machine {
	return []Machine{
		{Name: "Lavadora 01", Kind: MachineKindWasher, Status: MachineStatusAvailable},
		{Name: "Lavadora 02", Kind: MachineKindWasher, Status: MachineStatusAvailable},
		{Name: "Lavadora 03", Kind: MachineKindWasher, Status: MachineStatusAvailable},
		{Name: "Secadora 01", Kind: MachineKindDryer, Status: MachineStatusAvailable},
		{Name: "Secadora 02", Kind: MachineKindDryer, Status: MachineStatusAvailable},
		{Name: "Secadora 03", Kind: MachineKindDryer, Status: MachineStatusAvailable},
	}
}
