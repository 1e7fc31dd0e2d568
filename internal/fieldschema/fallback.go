package fieldschema

import "github.com/matthewbaird/adbatch/internal/types"

func opts(values ...string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: v, Label: v}
	}
	return out
}

var statusField = Field{
	ID: "status", Label: "Status", Type: TypeSelect,
	Required: true, Editable: false, IsActive: true,
	Options: opts("PAUSED", "ACTIVE"),
}

// Fallback returns the baked-in three-level schema used when no schema
// configuration can be loaded.
func Fallback() Config {
	return Config{
		PlatformHierarchy: []types.EntityType{types.EntityCampaign, types.EntityAdset, types.EntityAd},
		Levels: map[types.EntityType]Schema{
			types.EntityCampaign: {
				{ID: "name", Label: "Campaign Name", Type: TypeText, Required: true, Editable: true, IsActive: true},
				{ID: "objective", Label: "Objective", Type: TypeSelect, Required: true, Editable: true, IsActive: true,
					Options: opts("OUTCOME_AWARENESS", "OUTCOME_TRAFFIC", "OUTCOME_ENGAGEMENT", "OUTCOME_LEADS", "OUTCOME_SALES")},
				statusField,
				{ID: "buying_type", Label: "Buying Type", Type: TypeSelect, Required: true, Editable: true, IsActive: true,
					Options: opts("AUCTION", "RESERVED")},
				{ID: "budget_optimization", Label: "Budget Optimization", Type: TypeSelect, Editable: true, IsActive: true,
					Options: opts("CBO", "ABO")},
				{ID: "spend_cap", Label: "Spend Cap", Type: TypeNumber, Editable: true, IsActive: true},
				{ID: "start_date", Label: "Start Date", Type: TypeDate, Editable: true, IsActive: true},
				{ID: "end_date", Label: "End Date", Type: TypeDate, Editable: true, IsActive: false},
			},
			types.EntityAdset: {
				{ID: "name", Label: "Ad Set Name", Type: TypeText, Required: true, Editable: true, IsActive: true},
				{ID: "campaign_id", Label: "Campaign", Type: TypeText, Required: true, Editable: true, IsActive: true},
				statusField,
				{ID: "optimization_goal", Label: "Optimization Goal", Type: TypeSelect, Required: true, Editable: true, IsActive: true,
					Options: opts("REACH", "LINK_CLICKS", "IMPRESSIONS", "CONVERSIONS")},
				{ID: "billing_event", Label: "Billing Event", Type: TypeSelect, Required: true, Editable: true, IsActive: true,
					Options: opts("IMPRESSIONS", "LINK_CLICKS")},
				{ID: "bid_amount", Label: "Bid Amount", Type: TypeNumber, Editable: true, IsActive: true},
				{ID: "daily_budget", Label: "Daily Budget", Type: TypeNumber, Editable: true, IsActive: true},
				{ID: "lifetime_budget", Label: "Lifetime Budget", Type: TypeNumber, Editable: true, IsActive: false},
				{ID: "targeting", Label: "Targeting", Type: TypeObject, Required: true, Editable: true, IsActive: true,
					Schema: Schema{
						{ID: "geo_locations", Label: "Countries", Type: TypeMultiSelect, Required: true, Editable: true, IsActive: true,
							Options: opts("US", "CA", "GB", "DE", "FR")},
						{ID: "age_min", Label: "Min Age", Type: TypeNumber, Editable: true, IsActive: true},
						{ID: "age_max", Label: "Max Age", Type: TypeNumber, Editable: true, IsActive: true},
					}},
				{ID: "start_time", Label: "Start Time", Type: TypeDatetime, Editable: true, IsActive: true},
				{ID: "end_time", Label: "End Time", Type: TypeDatetime, Editable: true, IsActive: false},
			},
			types.EntityAd: {
				{ID: "name", Label: "Ad Name", Type: TypeText, Required: true, Editable: true, IsActive: true},
				{ID: "adset_id", Label: "Ad Set", Type: TypeText, Required: true, Editable: true, IsActive: true},
				statusField,
				{ID: "creative_type", Label: "Creative Type", Type: TypeSelect, Required: true, Editable: true, IsActive: true,
					Options: opts("IMAGE", "VIDEO", "CAROUSEL")},
				{ID: "primary_text", Label: "Primary Text", Type: TypeTextarea, Required: true, Editable: true, IsActive: true},
				{ID: "headline", Label: "Headline", Type: TypeText, Required: true, Editable: true, IsActive: true},
				{ID: "description", Label: "Description", Type: TypeTextarea, Editable: true, IsActive: true},
				{ID: "call_to_action", Label: "Call To Action", Type: TypeSelect, Required: true, Editable: true, IsActive: true,
					Options: opts("LEARN_MORE", "SHOP_NOW", "SIGN_UP", "DOWNLOAD")},
				{ID: "destination_url", Label: "Destination URL", Type: TypeURL, Required: true, Editable: true, IsActive: true},
				{ID: "media_url", Label: "Media URL", Type: TypeURL, Editable: true, IsActive: true},
				{ID: "carousel_cards", Label: "Carousel Cards", Type: TypeArray, Editable: true, IsActive: false,
					Schema: Schema{
						{ID: "headline", Label: "Card Headline", Type: TypeText, Required: true, Editable: true, IsActive: true},
						{ID: "image_url", Label: "Card Image", Type: TypeURL, Required: true, Editable: true, IsActive: true},
					}},
			},
		},
	}
}
