package hygiene

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// Jurisdiction rules for UK food hygiene ratings:
//
//   - England: FHRS 0-5, voluntary display
//   - Wales: FHRS 0-5, display mandatory under the Food Hygiene Rating
//     (Wales) Act 2013
//   - Northern Ireland: FHRS 0-5, voluntary display
//   - Scotland: FHIS, Pass / Improvement Required, separate scheme

type Jurisdiction string

const (
	JurisdictionEngland         Jurisdiction = "england"
	JurisdictionWales           Jurisdiction = "wales"
	JurisdictionScotland        Jurisdiction = "scotland"
	JurisdictionNorthernIreland Jurisdiction = "northern-ireland"
)

const (
	SchemeFHRS = "FHRS"
	SchemeFHIS = "FHIS"
)

type JurisdictionInfo struct {
	Jurisdiction          Jurisdiction `json:"jurisdiction"`
	Scheme                string       `json:"scheme"`
	DisplayMandatory      bool         `json:"displayMandatory"`
	RatingType            string       `json:"ratingType"`
	ReinspectionAvailable bool         `json:"reinspectionAvailable"`
}

//go:embed authorities.yaml
var authoritiesYAML []byte

type authorityLists struct {
	Wales           []string `yaml:"wales"`
	NorthernIreland []string `yaml:"northern_ireland"`
}

var (
	authoritiesOnce sync.Once
	welshSet        map[string]struct{}
	niSet           map[string]struct{}
)

func loadAuthorities() {
	authoritiesOnce.Do(func() {
		var lists authorityLists
		if err := yaml.Unmarshal(authoritiesYAML, &lists); err != nil {
			panic(fmt.Sprintf("hygiene: parse embedded authorities.yaml: %v", err))
		}

		welshSet = make(map[string]struct{}, len(lists.Wales))
		for _, name := range lists.Wales {
			welshSet[name] = struct{}{}
		}
		niSet = make(map[string]struct{}, len(lists.NorthernIreland))
		for _, name := range lists.NorthernIreland {
			niSet[name] = struct{}{}
		}
	})
}

// DetectJurisdiction classifies an establishment from its scheme type and
// local authority name.
func DetectJurisdiction(schemeType string, localAuthorityName string) JurisdictionInfo {
	loadAuthorities()

	if schemeType == SchemeFHIS {
		return JurisdictionInfo{
			Jurisdiction:          JurisdictionScotland,
			Scheme:                SchemeFHIS,
			DisplayMandatory:      false,
			RatingType:            "pass-fail",
			ReinspectionAvailable: false,
		}
	}

	if _, ok := welshSet[localAuthorityName]; ok {
		return JurisdictionInfo{
			Jurisdiction:          JurisdictionWales,
			Scheme:                SchemeFHRS,
			DisplayMandatory:      true,
			RatingType:            "numeric",
			ReinspectionAvailable: true,
		}
	}

	if _, ok := niSet[localAuthorityName]; ok {
		return JurisdictionInfo{
			Jurisdiction:          JurisdictionNorthernIreland,
			Scheme:                SchemeFHRS,
			DisplayMandatory:      false,
			RatingType:            "numeric",
			ReinspectionAvailable: true,
		}
	}

	return JurisdictionInfo{
		Jurisdiction:          JurisdictionEngland,
		Scheme:                SchemeFHRS,
		DisplayMandatory:      false,
		RatingType:            "numeric",
		ReinspectionAvailable: true,
	}
}
