// Package extract performs deterministic candidate extraction from
// preprocessed email text: amount, due date, and vendor name candidates,
// plus the cheap skip gate that runs before any model call.
package extract

// BillerEntry maps a known sender domain to a canonical vendor name and
// default category.
type BillerEntry struct {
	Domain   string
	Name     string
	Category string
}

// ProductRefinement disambiguates a generic vendor into a specific product
// when product keywords appear anywhere in the subject or body. Name and
// category move together so refinement stays consistent.
type ProductRefinement struct {
	Vendor   string
	Name     string
	Category string
	Keywords []string
}

// Tables is the immutable configuration data the extractor operates on.
// It is loaded once and injected so tests can substitute fixtures.
type Tables struct {
	Billers      []BillerEntry
	Refinements  []ProductRefinement
	SkipKeywords []string
	PromoKeywords []string
	BillKeywords []string
}

// DefaultTables returns the built-in reference tables.
func DefaultTables() Tables {
	return Tables{
		Billers: []BillerEntry{
			{Domain: "chase.com", Name: "Chase", Category: "credit_card"},
			{Domain: "citi.com", Name: "Citi", Category: "credit_card"},
			{Domain: "citibank.com", Name: "Citi", Category: "credit_card"},
			{Domain: "americanexpress.com", Name: "American Express", Category: "credit_card"},
			{Domain: "aexp.com", Name: "American Express", Category: "credit_card"},
			{Domain: "capitalone.com", Name: "Capital One", Category: "credit_card"},
			{Domain: "discover.com", Name: "Discover", Category: "credit_card"},
			{Domain: "wellsfargo.com", Name: "Wells Fargo", Category: "credit_card"},
			{Domain: "bankofamerica.com", Name: "Bank of America", Category: "credit_card"},
			{Domain: "comcast.com", Name: "Xfinity", Category: "internet"},
			{Domain: "xfinity.com", Name: "Xfinity", Category: "internet"},
			{Domain: "verizon.com", Name: "Verizon", Category: "phone"},
			{Domain: "verizonwireless.com", Name: "Verizon", Category: "phone"},
			{Domain: "att.com", Name: "AT&T", Category: "phone"},
			{Domain: "t-mobile.com", Name: "T-Mobile", Category: "phone"},
			{Domain: "spectrum.com", Name: "Spectrum", Category: "internet"},
			{Domain: "coned.com", Name: "Con Edison", Category: "utilities"},
			{Domain: "pge.com", Name: "PG&E", Category: "utilities"},
			{Domain: "nationalgrid.com", Name: "National Grid", Category: "utilities"},
			{Domain: "spotify.com", Name: "Spotify", Category: "subscription"},
			{Domain: "netflix.com", Name: "Netflix", Category: "subscription"},
			{Domain: "hulu.com", Name: "Hulu", Category: "subscription"},
			{Domain: "geico.com", Name: "GEICO", Category: "insurance"},
			{Domain: "progressive.com", Name: "Progressive", Category: "insurance"},
			{Domain: "statefarm.com", Name: "State Farm", Category: "insurance"},
			{Domain: "nelnet.com", Name: "Nelnet", Category: "loan"},
			{Domain: "mohela.com", Name: "MOHELA", Category: "loan"},
		},
		Refinements: []ProductRefinement{
			{Vendor: "Chase", Name: "Chase Auto", Category: "loan", Keywords: []string{"auto account", "auto loan", "chase auto"}},
			{Vendor: "Chase", Name: "Chase Ink Business", Category: "credit_card", Keywords: []string{"ink business", "chase ink"}},
			{Vendor: "Chase", Name: "Chase Sapphire", Category: "credit_card", Keywords: []string{"sapphire"}},
			{Vendor: "Chase", Name: "Chase Freedom", Category: "credit_card", Keywords: []string{"freedom unlimited", "freedom flex", "chase freedom"}},
			{Vendor: "Chase", Name: "Chase Home Lending", Category: "loan", Keywords: []string{"home lending", "mortgage account"}},
			{Vendor: "Citi", Name: "Citi Double Cash", Category: "credit_card", Keywords: []string{"double cash"}},
			{Vendor: "Citi", Name: "Citi Custom Cash", Category: "credit_card", Keywords: []string{"custom cash"}},
			{Vendor: "Capital One", Name: "Capital One Auto", Category: "loan", Keywords: []string{"auto finance", "auto loan"}},
			{Vendor: "Wells Fargo", Name: "Wells Fargo Home Mortgage", Category: "loan", Keywords: []string{"home mortgage", "mortgage payment"}},
			{Vendor: "American Express", Name: "Amex Platinum", Category: "credit_card", Keywords: []string{"platinum card"}},
			{Vendor: "American Express", Name: "Amex Gold", Category: "credit_card", Keywords: []string{"gold card"}},
			{Vendor: "Verizon", Name: "Verizon Fios", Category: "internet", Keywords: []string{"fios"}},
		},
		SkipKeywords: []string{
			"payment received",
			"thank you for your payment",
			"payment confirmation",
			"your payment was successful",
			"payment has been received",
			"we received your payment",
			"payment processed",
			"receipt for your payment",
			"subscription canceled",
			"subscription cancelled",
			"cancellation confirmed",
			"your order has shipped",
			"out for delivery",
			"verification code",
			"verify your email",
			"password was changed",
			"reset your password",
			"new sign-in",
			"security alert",
		},
		PromoKeywords: []string{
			"% off",
			"percent off",
			"discount",
			"sale ends",
			"limited time",
			"offer expires",
			"free shipping",
			"flash sale",
			"exclusive offer",
			"don't miss",
			"shop now",
			"coupon",
			"promo code",
			"left in your cart",
			"your cart",
			"save today",
		},
		BillKeywords: []string{
			"statement is ready",
			"statement is available",
			"amount due",
			"payment due",
			"due date",
			"minimum payment",
			"autopay",
			"past due",
			"invoice",
			"bill is ready",
		},
	}
}
