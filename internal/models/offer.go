package models

import "fmt"

// OfferAnalysisRequest is the input of the competitive offer analyst.
type OfferAnalysisRequest struct {
	Offers         []map[string]interface{} `json:"offers"`
	TenantContext  string                   `json:"tenant_context,omitempty"`
	ExistingOffers []string                 `json:"existing_offers,omitempty"`
}

func NewOfferAnalysisRequest(offers []map[string]interface{}, tenantContext string, existing []string) (*OfferAnalysisRequest, error) {
	if offers == nil {
		offers = []map[string]interface{}{}
	}
	req := &OfferAnalysisRequest{Offers: offers, TenantContext: tenantContext, ExistingOffers: existing}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *OfferAnalysisRequest) Validate() error {
	if r.Offers == nil {
		return fmt.Errorf("OfferAnalysisRequest: offers is required")
	}
	return nil
}

// OfferAnalysisResponse is the terminal artifact of the pipeline.
type OfferAnalysisResponse struct {
	RecommendedOffer map[string]interface{} `json:"recommended_offer"`
	Rationale        string                 `json:"rationale,omitempty"`
}

func (r *OfferAnalysisResponse) Validate() error {
	if r.RecommendedOffer == nil {
		return fmt.Errorf("OfferAnalysisResponse: recommended_offer is required")
	}
	return nil
}
