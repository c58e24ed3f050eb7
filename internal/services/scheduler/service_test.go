package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/internal/common"
)

func TestStart_DisabledByDefault(t *testing.T) {
	config := common.NewDefaultConfig().Scheduler
	require.False(t, config.Enabled)

	svc := NewService(nil, nil, nil, &config, common.GetLogger())
	assert.ErrorIs(t, svc.Start(), ErrDisabled)
}

func TestStart_EnabledRegistersJobs(t *testing.T) {
	config := common.NewDefaultConfig().Scheduler
	config.Enabled = true

	svc := NewService(nil, nil, nil, &config, common.GetLogger())
	require.NoError(t, svc.Start())
	svc.Stop()
}

func TestStart_InvalidCron(t *testing.T) {
	config := common.NewDefaultConfig().Scheduler
	config.Enabled = true
	config.SummaryRefreshCron = "not a cron expression"

	svc := NewService(nil, nil, nil, &config, common.GetLogger())
	assert.Error(t, svc.Start())
}
