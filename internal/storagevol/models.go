package storagevol

// VolumeSnapshot — текущее состояние хранилища артефактов.
type VolumeSnapshot struct {
	TotalBytes     int64   `json:"totalBytes"`
	UsedBytes      int64   `json:"usedBytes"`
	FreeBytes      int64   `json:"freeBytes"`
	UsedPercent    float64 `json:"usedPercent"`
	WarnPercent    int     `json:"warnPercent"`
	Warning        bool    `json:"warning"`
}

// AdmissionDecision — результат проверки места перед запуском задач.
type AdmissionDecision struct {
	Allowed        bool  `json:"allowed"`
	RequiredBytes  int64 `json:"requiredBytes"`
	AvailableBytes int64 `json:"availableBytes"`
}
