package api

type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type UserCreate struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type Prediction struct {
	ID            int     `json:"id"`
	Filename      string  `json:"filename"`
	Emotion       string  `json:"emotion"`
	Confidence    float64 `json:"confidence,omitempty"`
	ModelType     string  `json:"model_type"`
	AudioDuration float64 `json:"audio_duration,omitempty"`
	UserID        int     `json:"user_id"`
	CreatedAt     string  `json:"created_at"`
}

type Statistics struct {
	TotalPredictions   int            `json:"total_predictions"`
	TotalAudioFiles    int            `json:"total_audio_files"`
	EmotionsDetected   map[string]int `json:"emotions_detected"`
	AverageConfidence  float64        `json:"average_confidence"`
	LastPredictionDate string         `json:"last_prediction_date"`
}

// EmotionDistribution maps emotion labels to their share of recent public
// predictions.
type EmotionDistribution map[string]float64
