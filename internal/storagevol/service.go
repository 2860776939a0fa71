package storagevol

import (
	"context"
	"fmt"

	"github.com/fdg312/report-hub/internal/storage"
)

// Service считает занятый объём хранилища по завершённым файлам задач
// и принимает решение о допуске новых запусков.
type Service struct {
	files       storage.TaskFilesStorage
	totalBytes  int64
	warnPercent int
}

func NewService(files storage.TaskFilesStorage, totalBytes int64, warnPercent int) *Service {
	return &Service{
		files:       files,
		totalBytes:  totalBytes,
		warnPercent: warnPercent,
	}
}

// Snapshot возвращает текущее состояние хранилища.
func (s *Service) Snapshot(ctx context.Context) (*VolumeSnapshot, error) {
	used, err := s.files.SumCompletedSizes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute used bytes: %w", err)
	}

	available := s.totalBytes - used
	if available < 0 {
		available = 0
	}

	var usedPercent float64
	if s.totalBytes > 0 {
		usedPercent = float64(used) / float64(s.totalBytes) * 100
	}

	return &VolumeSnapshot{
		TotalBytes:     s.totalBytes,
		UsedBytes:      used,
		FreeBytes:      available,
		UsedPercent:    usedPercent,
		WarnPercent:    s.warnPercent,
		Warning:        usedPercent >= float64(s.warnPercent),
	}, nil
}

// CheckAdmission проверяет, хватит ли места под requiredBytes.
// Отказ не резервирует место: решение действительно на момент проверки.
func (s *Service) CheckAdmission(ctx context.Context, requiredBytes int64) (*AdmissionDecision, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return &AdmissionDecision{
		Allowed:        requiredBytes <= snapshot.FreeBytes,
		RequiredBytes:  requiredBytes,
		AvailableBytes: snapshot.FreeBytes,
	}, nil
}
