package models

import "fmt"

type SiteCode string

const (
	SiteEMAC SiteCode = "emac"
	SiteHSSI SiteCode = "hssi"
)

// Site describes the product instance a deployment serves.
type Site struct {
	Code          SiteCode `json:"code"`
	Name          string   `json:"name"`
	BaseURL       string   `json:"base_url"`
	DigestSubject string   `json:"-"`
}

var knownSites = map[SiteCode]Site{
	SiteEMAC: {
		Code:          SiteEMAC,
		Name:          "Exoplanet Modeling and Analysis Center",
		DigestSubject: "EMAC",
	},
	SiteHSSI: {
		Code:          SiteHSSI,
		Name:          "Heliophysics Software Search Interface",
		DigestSubject: "HSSI",
	},
}

func LookupSite(code string, baseURL string) (Site, error) {
	site, ok := knownSites[SiteCode(code)]
	if !ok {
		return Site{}, fmt.Errorf("unknown site %q: %w", code, ErrInvalidArgument)
	}
	site.BaseURL = baseURL
	return site, nil
}
