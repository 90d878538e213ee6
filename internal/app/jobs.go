package app

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/talkincode/wafleet/internal/registry"
	"github.com/talkincode/wafleet/pkg/metrics"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@every 60s", func() {
		a.SchedWorkerProbeTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.SchedClearStaleQRTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	// Collect CPU usage
	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge("system_cpuuse", int64(_cpuuse[0]*100)) // Store as percentage * 100
	}

	// Collect memory usage
	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge("system_memuse", int64(_meminfo.Used/1024/1024)) //nolint:gosec // G115: memory MB value fits in int64
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: PID is always within int32 range
	if err != nil {
		return
	}

	// Collect process CPU usage
	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("wafleet_cpuuse", int64(cpuuse*100)) // Store as percentage * 100
	}

	// Collect process memory usage
	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("wafleet_memuse", int64(meminfo.RSS/1024/1024)) //nolint:gosec // G115: memory MB value fits in int64
	}
}

// SchedWorkerProbeTask probes every active worker server and refreshes its
// instance count. A goroutine pool bounds concurrent outbound calls so a
// large fleet cannot exhaust sockets.
func (a *Application) SchedWorkerProbeTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	ctx := context.Background()
	servers, err := a.reg.ListActive(ctx)
	if err != nil {
		zap.L().Error("probe sweep failed to list servers", zap.Error(err))
		return
	}
	if len(servers) == 0 {
		return
	}

	size := a.appConfig.Worker.ProbeConcurrency
	if size <= 0 {
		size = 10
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		zap.L().Error("probe sweep pool init failed", zap.Error(err))
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	healthy := 0
	var mu sync.Mutex
	for i := range servers {
		server := servers[i]
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			result := a.reg.ProbeHealth(ctx, &server)
			a.reg.RefreshStats(ctx, &server)
			if result.Class == registry.HealthHealthy {
				mu.Lock()
				healthy++
				mu.Unlock()
			}
		}); err != nil {
			wg.Done()
			zap.L().Error("probe sweep submit failed", zap.Error(err))
		}
	}
	wg.Wait()

	metrics.SetGauge("worker_servers_total", int64(len(servers)))
	metrics.SetGauge("worker_servers_healthy", int64(healthy))
}

// SchedClearStaleQRTask clears QR material that was never scanned.
func (a *Application) SchedClearStaleQRTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	ttl := time.Duration(a.ConfigMgr().GetInt("worker", "qr_ttl_hours")) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := a.sessions.ClearStaleQR(context.Background(), ttl); err != nil {
		zap.L().Error("stale qr cleanup failed", zap.Error(err))
	}
}
