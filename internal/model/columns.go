package model

// Raw district table columns.
const (
	ColState           = "State name"
	ColDistrict        = "District name"
	ColDistrictCode    = "District code"
	ColPopulation      = "Population"
	ColMale            = "Male"
	ColFemale          = "Female"
	ColLiterate        = "Literate"
	ColWorkers         = "Workers"
	ColMaleWorkers     = "Male_Workers"
	ColFemaleWorkers   = "Female_Workers"
	ColHouseholds      = "Households"
	ColUrbanHouseholds = "Urban_Households"
	ColInternet        = "Households_with_Internet"
	ColMobile          = "Households_with_Telephone_Mobile_Phone"
	ColTelevision      = "Households_with_Television"
	ColComputer        = "Households_with_Computer"
	ColLatrine         = "Having_latrine_facility_within_the_premises_Total_Households"
)

// Derived metric columns.
const (
	ColSexRatio            = "Sex_Ratio"
	ColLiteracyRate        = "Literacy_Rate"
	ColWorkerParticipation = "Worker_Participation_Rate"
	ColUrbanisationRate    = "Urbanisation_Rate"
	ColInternetPenetration = "Internet_Penetration"
	ColMobilePhoneAccess   = "Mobile_Phone_Access"
	ColSanitationGap       = "Sanitation_Gap"
)

// Housing table keys and composite scores.
const (
	ColHousingState       = "State Name"
	ColHousingDistrict    = "District Name"
	ColHousingQuality     = "Housing_Quality_Score"
	ColModernConstruction = "Modern_Construction_Score"
	ColCleanEnergy        = "Clean_Energy_Score"
	ColDigitalAssets      = "Digital_Assets_Score"
	ColInfrastructure     = "Infrastructure_Score"
)

// CompositeColumns lists the five housing composite scores.
var CompositeColumns = []string{
	ColHousingQuality,
	ColModernConstruction,
	ColCleanEnergy,
	ColDigitalAssets,
	ColInfrastructure,
}
