package pricing

import (
	"waterz/internal/models"
)

// Price computes a package price from the rate card under the given tier.
func Price(rates models.RateCard, d models.PackageDuration, isPeak bool) float64 {
	return d.Sailing*rates.Sailing.For(isPeak) + d.Anchorage*rates.Anchoring.For(isPeak)
}

// PackageOptions prices every package the yacht offers.
func PackageOptions(yacht *models.Yacht, isPeak bool) []models.PricedPackageOption {
	options := make([]models.PricedPackageOption, 0, len(yacht.PackageTypes))
	for _, id := range yacht.PackageTypes {
		options = append(options, PackageOption(yacht, id, isPeak))
	}
	return options
}

func PackageOption(yacht *models.Yacht, identifier string, isPeak bool) models.PricedPackageOption {
	d := ParseDuration(identifier)
	price := Price(yacht.Price, d, isPeak)
	return models.PricedPackageOption{
		Identifier:     identifier,
		SailingHours:   d.Sailing,
		AnchorageHours: d.Anchorage,
		Price:          price,
		Label:          d.Label() + " (₹" + models.FormatAmount(price) + ")",
	}
}

// AddonTotal sums the add-on rates once per booking, not per hour.
func AddonTotal(addons []models.AddonService) float64 {
	var total float64
	for _, a := range addons {
		total += a.PricePerHour
	}
	return total
}
