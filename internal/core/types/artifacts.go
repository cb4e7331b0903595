package types

// DataIngestionConfig describes where the raw dataset archive comes from and
// where it is unpacked.
type DataIngestionConfig struct {
	DataIngestionDir string
	FeatureStoreDir  string
	DataDownloadURL  string
	// KeepRoots are top-level archive entries that are never stripped when
	// the archive is flattened.
	KeepRoots []string
}

type DataIngestionArtifact struct {
	DataZipFilePath  string `json:"data_zip_file_path"`
	FeatureStorePath string `json:"feature_store_path"`
}

type DataValidationConfig struct {
	DataValidationDir   string
	ValidStatusFilePath string
	RequiredFileList    []string
}

type DataValidationArtifact struct {
	ValidationStatus bool     `json:"validation_status"`
	MissingFiles     []string `json:"missing_files,omitempty"`
}

type ModelTrainerConfig struct {
	ModelTrainerDir string
	WeightName      string
	NoEpochs        int
	BatchSize       int
}

type ModelTrainerArtifact struct {
	TrainedModelFilePath string `json:"trained_model_file_path"`
}
