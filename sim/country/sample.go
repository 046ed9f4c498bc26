package country

// Sample returns seven major markets with 2023 World Bank, ITU and Speedtest
// figures. A fresh slice is returned on every call.
func Sample() []Record {
	return []Record{
		{
			Code: "US", Name: "United States", Region: "North America", IncomeGroup: "High income",
			Population: 331_900_000, LandAreaKm2: 9_833_517,
			GDPPerCapitaUSD: 64_530, GDPPerCapitaMonthlyUSD: 5_377,
			AvgBroadbandSpeedMbps: ptr(42.8), RuralFraction: 57_230_000.0 / 331_900_000,
			RegulatoryQualityScore: ptr(1.21),
		},
		{
			Code: "CN", Name: "China", Region: "East Asia & Pacific", IncomeGroup: "Upper middle income",
			Population: 1_439_320_000, LandAreaKm2: 9_596_960,
			GDPPerCapitaUSD: 10_240, GDPPerCapitaMonthlyUSD: 853,
			AvgBroadbandSpeedMbps: ptr(22.1), RuralFraction: 564_110_000.0 / 1_439_320_000,
			RegulatoryQualityScore: ptr(-0.42),
		},
		{
			Code: "IN", Name: "India", Region: "South Asia", IncomeGroup: "Lower middle income",
			Population: 1_380_000_000, LandAreaKm2: 3_287_263,
			GDPPerCapitaUSD: 2_083, GDPPerCapitaMonthlyUSD: 174,
			AvgBroadbandSpeedMbps: ptr(13.8), RuralFraction: 896_000_000.0 / 1_380_000_000,
			RegulatoryQualityScore: ptr(-0.21),
		},
		{
			Code: "BR", Name: "Brazil", Region: "Latin America & Caribbean", IncomeGroup: "Upper middle income",
			Population: 212_600_000, LandAreaKm2: 8_514_877,
			GDPPerCapitaUSD: 7_570, GDPPerCapitaMonthlyUSD: 631,
			AvgBroadbandSpeedMbps: ptr(26.2), RuralFraction: 25_000_000.0 / 212_600_000,
			RegulatoryQualityScore: ptr(-0.08),
		},
		{
			Code: "RU", Name: "Russian Federation", Region: "Europe & Central Asia", IncomeGroup: "Upper middle income",
			Population: 145_940_000, LandAreaKm2: 17_098_242,
			GDPPerCapitaUSD: 10_160, GDPPerCapitaMonthlyUSD: 847,
			AvgBroadbandSpeedMbps: ptr(32.4), RuralFraction: 37_000_000.0 / 145_940_000,
			RegulatoryQualityScore: ptr(-0.71),
		},
		{
			Code: "AU", Name: "Australia", Region: "East Asia & Pacific", IncomeGroup: "High income",
			Population: 25_500_000, LandAreaKm2: 7_692_024,
			GDPPerCapitaUSD: 54_600, GDPPerCapitaMonthlyUSD: 4_550,
			AvgBroadbandSpeedMbps: ptr(34.6), RuralFraction: 2_800_000.0 / 25_500_000,
			RegulatoryQualityScore: ptr(1.62),
		},
		{
			Code: "CA", Name: "Canada", Region: "North America", IncomeGroup: "High income",
			Population: 38_000_000, LandAreaKm2: 9_984_670,
			GDPPerCapitaUSD: 45_680, GDPPerCapitaMonthlyUSD: 3_807,
			AvgBroadbandSpeedMbps: ptr(52.6), RuralFraction: 6_270_000.0 / 38_000_000,
			RegulatoryQualityScore: ptr(1.59),
		},
	}
}

func ptr(v float64) *float64 { return &v }
