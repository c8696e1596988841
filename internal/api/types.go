package api

// Token is the response from the login endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
	TenantSlug  string `json:"tenant_slug"`
}

// Symbol is a tradeable instrument in the symbol master.
type Symbol struct {
	ID             int    `json:"id"`
	TradingSymbol  string `json:"trading_symbol"`
	Exchange       string `json:"exchange"`
	Name           string `json:"name"`
	InstrumentType string `json:"instrument_type"`
	Segment        string `json:"segment,omitempty"`
	LotSize        int    `json:"lot_size,omitempty"`
	FOEligible     bool   `json:"fo_eligible"`
	SecurityID     string `json:"security_id"`
	Active         bool   `json:"active"`
}

// SymbolList is the paged symbols response.
type SymbolList struct {
	Symbols []Symbol `json:"symbols"`
	Count   int      `json:"count"`
}

// Prediction is a daily strong-move prediction for one symbol.
type Prediction struct {
	ID                   int      `json:"id"`
	TenantID             int      `json:"tenant_id"`
	SymbolID             int      `json:"symbol_id"`
	Date                 string   `json:"date"`
	StrongMoveConfidence float64  `json:"strong_move_confidence"`
	DirectionPrediction  string   `json:"direction_prediction,omitempty"` // "UP" or "DOWN"
	DirectionConfidence  *float64 `json:"direction_confidence,omitempty"`
	Verified             *bool    `json:"verified,omitempty"`
	VerificationDate     string   `json:"verification_date,omitempty"`
	ActualMovePercent    *float64 `json:"actual_move_percent,omitempty"`
	ActualDirection      string   `json:"actual_direction,omitempty"`
	DaysToFulfill        *int     `json:"days_to_fulfill,omitempty"`
	CreatedAt            string   `json:"created_at"`
	SymbolName           string   `json:"symbol_name,omitempty"`
}

// PredictionList is the paged predictions response.
type PredictionList struct {
	Predictions []Prediction `json:"predictions"`
	Count       int          `json:"count"`
}

// PredictionStats summarizes prediction accuracy for the tenant.
type PredictionStats struct {
	TotalPredictions    int      `json:"total_predictions"`
	VerifiedPredictions int      `json:"verified_predictions"`
	Accuracy            float64  `json:"accuracy"`
	UpPredictions       int      `json:"up_predictions"`
	DownPredictions     int      `json:"down_predictions"`
	DirectionAccuracy   *float64 `json:"direction_accuracy,omitempty"`
	AvgDaysToFulfill    *float64 `json:"avg_days_to_fulfill,omitempty"`
}

// Tenant is one workspace on the platform.
type Tenant struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Plan       string `json:"plan"`
	MaxSymbols *int   `json:"max_symbols,omitempty"`
}

// ScheduledTask is a pipeline task registered with the scheduler.
type ScheduledTask struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TaskType string `json:"task_type"`
	Schedule string `json:"schedule"`
	Enabled  bool   `json:"enabled"`
	LastRun  string `json:"last_run,omitempty"`
	NextRun  string `json:"next_run,omitempty"`
}

// TasksList is the scheduler tasks response.
type TasksList struct {
	Tasks []ScheduledTask `json:"tasks"`
	Count int             `json:"count"`
}

// TaskExecutionLog records one run of a scheduled task.
type TaskExecutionLog struct {
	ID         int    `json:"id"`
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Message    string `json:"message,omitempty"`
}

// PipelineState is the tenant's current pipeline run.
type PipelineState struct {
	Status      string  `json:"status"` // "running", "completed", "failed"
	CurrentStep string  `json:"current_step,omitempty"`
	Progress    float64 `json:"progress"`
	Message     string  `json:"message,omitempty"`
	StartedAt   string  `json:"started_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}
