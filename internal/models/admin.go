package models

// DashboardStats is the payload of the admin overview cards.
type DashboardStats struct {
	TotalUsers         int     `json:"totalUsers"`
	ActiveUsers        int     `json:"activeUsers"`
	TotalProjects      int     `json:"totalProjects"`
	ProcessingProjects int     `json:"processingProjects"`
	CompletedProjects  int     `json:"completedProjects"`
	FailedProjects     int     `json:"failedProjects"`
	ServerLoad         float64 `json:"serverLoad"`
	MemoryUsage        float64 `json:"memoryUsage"`
	DiskUsage          float64 `json:"diskUsage"`
	Uptime             string  `json:"uptime"`
	AvgProcessingTime  string  `json:"avgProcessingTime"`
	DailyUploads       int     `json:"dailyUploads"`
	StorageUsed        string  `json:"storageUsed"`
	MetricsSource      string  `json:"metricsSource,omitempty"`
}

// QueueItem is one row of the admin processing queue.
type QueueItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	ETA      string `json:"eta"`
}

// AdminProject is a project as listed in the admin project table.
type AdminProject struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	UserID        string  `json:"user_id"`
	Owner         string  `json:"owner"`
	Status        string  `json:"status"`
	IsProcessing  bool    `json:"is_processing"`
	XSensitivity  float64 `json:"x_sensitivity"`
	YSensitivity  float64 `json:"y_sensitivity"`
	CreationDate  string  `json:"creation_date"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// UserUpdate carries the admin-editable user fields. Nil fields are left unchanged.
type UserUpdate struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	Email         *string `json:"email,omitempty"`
	IsAdmin       *bool   `json:"is_admin,omitempty"`
	EmailVerified *bool   `json:"email_verified,omitempty"`
}

// SystemMetrics is the time series shown on the admin metrics page.
type SystemMetrics struct {
	TimeRange         string    `json:"timeRange"`
	Labels            []string  `json:"labels"`
	CPU               []float64 `json:"cpu"`
	Memory            []float64 `json:"memory"`
	ProcessingHistory []float64 `json:"processingHistory"`
	ErrorRate         []float64 `json:"errorRate"`
	DiskUsage         float64   `json:"diskUsage"`
	AvgProcessTime    string    `json:"avgProcessTime"`
	Source            string    `json:"source,omitempty"`
}

// LogEntry is one line in the admin log view.
type LogEntry struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Service   string `json:"service"`
	RequestID string `json:"request_id,omitempty"`
}
