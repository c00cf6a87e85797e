package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// GetDiskUsage reports space on the filesystem containing path
func GetDiskUsage(ctx context.Context, path string) (*DiskUsage, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk usage: %w", err)
	}

	return &DiskUsage{
		Path:        path,
		Total:       usage.Total,
		Used:        usage.Used,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}
