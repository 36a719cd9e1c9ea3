package workflow

import "fmt"

// potentialCustomer is the deterministic mock lead record produced by
// the research stage, mirroring
// _generate_potential_customer_list's placeholder generator — a real
// deployment would swap this for a firmographic data source.
type potentialCustomer struct {
	CompanyName   string
	Industry      string
	Size          string
	Location      string
	AnnualRevenue float64
	EmployeeCount int
	Website       string
	PainPoints    []string
}

var defaultPainPoints = []string{
	"Inefficient customer management",
	"Inconsistent sales process",
	"Limited data analysis capability",
}

// generatePotentialCustomers builds up to maxPotentialCustomers
// deterministic candidate companies for the given criteria.
func generatePotentialCustomers(industry, size, location string) []potentialCustomer {
	customers := make([]potentialCustomer, 0, maxPotentialCustomers)
	for i := 0; i < maxPotentialCustomers; i++ {
		customers = append(customers, potentialCustomer{
			CompanyName:   fmt.Sprintf("%s Company %d", industry, i+1),
			Industry:      industry,
			Size:          size,
			Location:      location,
			AnnualRevenue: 5_000_000 + float64(i)*1_000_000,
			EmployeeCount: 100 + i*50,
			Website:       fmt.Sprintf("https://company%d.example.com", i+1),
			PainPoints:    defaultPainPoints,
		})
	}
	return customers
}

// qualifyScore derives a deterministic qualification score from the
// candidate's revenue, standing in for qualify_customer's
// budget_threshold/decision_timeline/authority_level checks.
func qualifyScore(pc potentialCustomer) float64 {
	score := pc.AnnualRevenue / qualificationBudgetBasis
	if score > 1 {
		score = 1
	}
	return score
}
