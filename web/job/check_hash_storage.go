package job

import (
	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/hashstorage"
)

// HashStorageProvider bot 重启后会换一个新的 HashStorage，因此每次运行都重新获取
type HashStorageProvider interface {
	GetHashStorage() *hashstorage.HashStorage
}

type CheckHashStorageJob struct {
	provider HashStorageProvider
}

func NewCheckHashStorageJob(provider HashStorageProvider) *CheckHashStorageJob {
	return &CheckHashStorageJob{provider: provider}
}

func (j *CheckHashStorageJob) Run() {
	storage := j.provider.GetHashStorage()
	if storage == nil {
		return
	}
	if n := storage.RemoveExpiredHashes(); n > 0 {
		logger.Debugf("removed %d expired callback hashes", n)
	}
}
