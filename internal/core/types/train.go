package types

// TrainParams are the hyperparameters handed to a detector's training entry
// point.
type TrainParams struct {
	WorkDir   string
	Data      string
	Project   string
	Name      string
	Epochs    int
	Batch     int
	ImageSize int
	Cache     bool
}
