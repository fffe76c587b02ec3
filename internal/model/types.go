package model

// PredictionResult is the response shape for a single classification.
// Prediction and Error are pointers so failed calls serialize them as null.
type PredictionResult struct {
	Prediction     *string `json:"prediction"`
	Confidence     float64 `json:"confidence"`
	CatProbability float64 `json:"cat_probability"`
	DogProbability float64 `json:"dog_probability"`
	Success        bool    `json:"success"`
	Error          *string `json:"error"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}
