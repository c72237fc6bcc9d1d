package schema

// AssetColumns defines the expected CSV columns for asset inventory imports.
var AssetColumns = []SchemaColumn{
	{Key: "assetId", Label: "Asset ID", Required: true, Rules: []Rule{
		{Kind: RuleRegex, Pattern: `^[0-9]+$`},
	}},
	{Key: "uniqueIdentifier", Label: "Unique Identifier", Required: true},
	{Key: "assetName", Label: "Asset Name"},
	{Key: "category", Label: "Category"},
	{Key: "location", Label: "Location"},
	{Key: "condition", Label: "Condition", Rules: []Rule{
		{Kind: RuleEnum, Values: []string{"New", "Good", "Fair", "Poor"}},
	}},
	{Key: "purchaseDate", Label: "Purchase Date", Rules: []Rule{
		{Kind: RuleRegex, Pattern: `^\d{4}-\d{2}-\d{2}$`, Message: "Purchase Date must be YYYY-MM-DD"},
	}},
	{Key: "purchaseCost", Label: "Purchase Cost", Rules: []Rule{
		{Kind: RuleRegex, Pattern: `^-?\d+(\.\d+)?$`, Message: "Purchase Cost must be a number"},
	}},
}

// Defaults returns the schemas every fresh registry starts with.
func Defaults() []Schema {
	return []Schema{
		{
			ID:          "assets",
			Name:        "Assets",
			Description: "Asset inventory import",
			Columns:     AssetColumns,
		},
	}
}
