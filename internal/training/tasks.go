package training

import (
	"github.com/sells-group/census-insights/internal/housing"
	"github.com/sells-group/census-insights/internal/model"
	"github.com/sells-group/census-insights/internal/registry"
)

// Task names used as result keys.
const (
	TaskLiteracy          = "literacy_prediction"
	TaskInternet          = "internet_prediction"
	TaskSanitation        = "sanitation_classification"
	TaskDistrictClusters  = "district_clustering"
	TaskAnomalies         = "anomaly_detection"
	TaskPCA               = "pca_analysis"
	TaskHousingQuality    = "housing_quality_prediction"
	TaskAssetOwnership    = "asset_ownership_classification"
	TaskHousingClusters   = "housing_clustering"
	TaskInfrastructure    = "infrastructure_score_prediction"
	maxClusterDistricts   = 5
	maxAnomalies          = 20
	maxProjectedDistricts = 100
)

// CoreTasks run on every pass; HousingTasks need the houselisting table.
var (
	CoreTasks    = []string{TaskLiteracy, TaskInternet, TaskSanitation, TaskDistrictClusters, TaskAnomalies, TaskPCA}
	HousingTasks = []string{TaskHousingQuality, TaskAssetOwnership, TaskHousingClusters, TaskInfrastructure}
)

// taskDef declares one task. Features absent from the input are dropped; the
// task is skipped when fewer than minFeatures remain.
type taskDef struct {
	task        string
	model       string
	title       string
	target      string
	features    []string
	housing     []string
	minFeatures int
	// profile maps cluster profile keys to columns.
	profile map[string]string
}

var literacyTask = taskDef{
	task:   TaskLiteracy,
	model:  registry.Literacy,
	title:  "Enhanced Literacy Rate Predictor",
	target: model.ColLiteracyRate,
	features: []string{
		model.ColPopulation, model.ColUrbanisationRate, model.ColInternetPenetration,
		model.ColMobilePhoneAccess, model.ColWorkerParticipation,
		model.ColTelevision, model.ColComputer,
		model.ColHousingQuality, model.ColModernConstruction, model.ColCleanEnergy,
		model.ColDigitalAssets, model.ColInfrastructure,
		housing.ColElectricity, housing.ColCookingLPG, housing.ColTelevision, housing.ColComputerInternet,
	},
	housing:     model.CompositeColumns,
	minFeatures: 1,
}

var internetTask = taskDef{
	task:   TaskInternet,
	model:  registry.Internet,
	title:  "Enhanced Internet Penetration Predictor",
	target: model.ColInternetPenetration,
	features: []string{
		model.ColLiteracyRate, model.ColUrbanisationRate, model.ColMobilePhoneAccess,
		model.ColTelevision, model.ColComputer, model.ColWorkerParticipation, model.ColPopulation,
		model.ColDigitalAssets, model.ColCleanEnergy, model.ColInfrastructure,
		housing.ColElectricity, housing.ColTelevision, housing.ColComputerInternet, housing.ColMobile,
		model.ColModernConstruction, model.ColHousingQuality,
	},
	housing:     []string{model.ColDigitalAssets, model.ColCleanEnergy, model.ColInfrastructure, model.ColHousingQuality},
	minFeatures: 1,
}

var sanitationTask = taskDef{
	task:   TaskSanitation,
	model:  registry.Sanitation,
	title:  "Enhanced Sanitation Risk Classifier",
	target: model.ColSanitationGap,
	features: []string{
		model.ColLiteracyRate, model.ColUrbanisationRate, model.ColPopulation,
		model.ColWorkerParticipation, model.ColInternetPenetration,
		model.ColInfrastructure, model.ColHousingQuality, model.ColCleanEnergy,
		housing.ColLatrinePremises, housing.ColBathroom, housing.ColWaterPremises,
		model.ColModernConstruction, housing.ColElectricity,
	},
	housing:     []string{model.ColInfrastructure, model.ColHousingQuality, housing.ColLatrinePremises, housing.ColBathroom},
	minFeatures: 1,
}

var districtFeatures = []string{
	model.ColLiteracyRate, model.ColWorkerParticipation, model.ColUrbanisationRate,
	model.ColInternetPenetration, model.ColMobilePhoneAccess, model.ColSanitationGap,
	model.ColSexRatio,
}

var districtClusterTask = taskDef{
	task:        TaskDistrictClusters,
	model:       registry.DistrictClusters,
	title:       "District Clustering",
	features:    districtFeatures,
	minFeatures: len(districtFeatures),
	profile: map[string]string{
		"avg_literacy":       model.ColLiteracyRate,
		"avg_urbanisation":   model.ColUrbanisationRate,
		"avg_internet":       model.ColInternetPenetration,
		"avg_sanitation_gap": model.ColSanitationGap,
	},
}

var anomalyFeatures = []string{
	model.ColLiteracyRate, model.ColWorkerParticipation, model.ColUrbanisationRate,
	model.ColInternetPenetration, model.ColSanitationGap, model.ColSexRatio,
}

var anomalyTask = taskDef{
	task:        TaskAnomalies,
	model:       registry.Anomaly,
	title:       "Anomaly Detection",
	features:    anomalyFeatures,
	minFeatures: len(anomalyFeatures),
}

var pcaTask = taskDef{
	task:        TaskPCA,
	model:       registry.Projection,
	title:       "PCA Analysis",
	features:    districtFeatures,
	minFeatures: len(districtFeatures),
}

var housingQualityTask = taskDef{
	task:   TaskHousingQuality,
	model:  registry.HousingQuality,
	title:  "Housing Quality Predictor",
	target: model.ColHousingQuality,
	features: []string{
		model.ColLiteracyRate, model.ColUrbanisationRate, model.ColWorkerParticipation,
		model.ColModernConstruction, model.ColCleanEnergy, model.ColInfrastructure,
		housing.ColElectricity, housing.ColCookingLPG, housing.ColRoofConcrete,
	},
	minFeatures: 5,
}

var assetOwnershipTask = taskDef{
	task:   TaskAssetOwnership,
	model:  registry.AssetOwnership,
	title:  "Asset Ownership Classifier",
	target: model.ColDigitalAssets,
	features: []string{
		model.ColLiteracyRate, model.ColUrbanisationRate, model.ColHousingQuality,
		model.ColCleanEnergy, housing.ColElectricity, housing.ColCookingLPG,
	},
	minFeatures: 4,
}

var housingClusterTask = taskDef{
	task:  TaskHousingClusters,
	model: registry.HousingClusters,
	title: "Housing-based District Clustering",
	features: []string{
		model.ColHousingQuality, model.ColModernConstruction, model.ColCleanEnergy,
		model.ColDigitalAssets, model.ColInfrastructure, housing.ColPermanent,
		housing.ColElectricity, housing.ColCookingLPG,
	},
	minFeatures: 4,
	profile: map[string]string{
		"avg_housing_quality":     model.ColHousingQuality,
		"avg_modern_construction": model.ColModernConstruction,
		"avg_clean_energy":        model.ColCleanEnergy,
		"avg_digital_assets":      model.ColDigitalAssets,
	},
}

var infrastructureTask = taskDef{
	task:   TaskInfrastructure,
	model:  registry.Infrastructure,
	title:  "Infrastructure Score Predictor",
	target: model.ColInfrastructure,
	features: []string{
		model.ColLiteracyRate, model.ColUrbanisationRate, model.ColPopulation,
		model.ColHousingQuality, model.ColCleanEnergy, housing.ColElectricity,
	},
	minFeatures: 4,
}
