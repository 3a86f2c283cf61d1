package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iqtlabs/gamutrf/internal/config"
	"github.com/iqtlabs/gamutrf/internal/domain"
	"github.com/iqtlabs/gamutrf/internal/recorder"
)

type stubRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  map[string]bool
}

func (r *stubRunner) Run(_ context.Context, args []string) (recorder.CommandResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)
	for _, a := range args {
		if r.fail[a] {
			return recorder.CommandResult{ExitCode: 1, Output: "no device found"}, errors.New("exit status 1")
		}
	}
	return recorder.CommandResult{}, nil
}

func testConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SDR = "bladerf"
	cfg.Path = t.TempDir()
	cfg.HistoryDB = ""
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, runner recorder.Runner) Service {
	t.Helper()
	n := 0
	svc, err := New(cfg, Options{
		Runner: runner,
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
		NewID: func() string {
			n++
			return "job-" + string(rune('0'+n))
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

var req915 = domain.RecordingRequest{CenterFreq: 915e6, SampleCount: 2000000, SampleRate: 20e6}

func TestService_SubmitAndProcess(t *testing.T) {
	cfg := testConfig(t, nil)
	runner := &stubRunner{}
	svc := newTestService(t, cfg, runner)

	job, err := svc.Submit(req915)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.ID != "job-1" || job.Status != domain.JobStatusQueued {
		t.Errorf("Submit() = %+v", job)
	}
	if st := svc.Status(); st.QueueDepth != 1 || st.Pending[0].ID != "job-1" || st.Recording {
		t.Errorf("Status() = %+v", st)
	}

	done, err := svc.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext() error = %v", err)
	}
	if !done.Succeeded || done.Status != domain.JobStatusDone {
		t.Fatalf("job = %+v", done)
	}
	if _, err := os.Stat(done.MetadataFile); err != nil {
		t.Errorf("sigmf sidecar missing: %v", err)
	}

	jobs, err := svc.Jobs(context.Background(), 10)
	if err != nil {
		t.Fatalf("Jobs() error = %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != domain.JobStatusDone || jobs[0].MetadataFile != done.MetadataFile {
		t.Errorf("Jobs() = %+v", jobs)
	}
}

func TestService_SigMFDisabled(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.SigMF = false })
	svc := newTestService(t, cfg, &stubRunner{})

	svc.Submit(req915)
	job, _ := svc.ProcessNext(context.Background())
	if job.MetadataFile != "" {
		t.Errorf("metadata written with sigmf disabled: %s", job.MetadataFile)
	}
	entries, _ := os.ReadDir(cfg.Path)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sigmf-meta") {
			t.Errorf("unexpected sidecar %s", e.Name())
		}
	}
}

func TestService_LastErrorTracksOutcome(t *testing.T) {
	cfg := testConfig(t, nil)
	runner := &stubRunner{fail: map[string]bool{"set frequency rx 100000000": true}}
	svc := newTestService(t, cfg, runner)

	svc.Submit(domain.RecordingRequest{CenterFreq: 100e6, SampleCount: 10, SampleRate: 1e6})
	svc.Submit(req915)

	failed, _ := svc.ProcessNext(context.Background())
	if failed.Succeeded {
		t.Fatal("expected first job to fail")
	}
	if msg := svc.GetLastError(); !strings.Contains(msg, "no device found") {
		t.Errorf("GetLastError() = %q", msg)
	}

	ok, _ := svc.ProcessNext(context.Background())
	if !ok.Succeeded {
		t.Fatalf("second job should run after a failure: %s", ok.Error)
	}
	if msg := svc.GetLastError(); msg != "" {
		t.Errorf("GetLastError() after success = %q", msg)
	}
}

func TestService_Excluded(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.FreqExcluded = []string{"100-200"} })
	svc := newTestService(t, cfg, &stubRunner{})

	if !svc.Excluded(150e6) || !svc.Excluded(100e6) || !svc.Excluded(200e6) {
		t.Error("frequencies inside 100-200 MHz should be excluded")
	}
	if svc.Excluded(915e6) {
		t.Error("915 MHz should not be excluded")
	}
}

func TestService_JobsWithoutHistory(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.History = false })
	svc := newTestService(t, cfg, &stubRunner{})

	svc.Submit(req915)
	svc.Submit(req915)
	svc.ProcessNext(context.Background())

	jobs, err := svc.Jobs(context.Background(), 10)
	if err != nil {
		t.Fatalf("Jobs() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Jobs() returned %d jobs, want 2", len(jobs))
	}
	statuses := map[string]domain.JobStatus{}
	for _, j := range jobs {
		statuses[j.ID] = j.Status
	}
	if statuses["job-1"] != domain.JobStatusDone || statuses["job-2"] != domain.JobStatusQueued {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestService_RunWorkerStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, nil)
	runner := &stubRunner{}
	svc := newTestService(t, cfg, runner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunWorker(ctx) }()

	svc.Submit(req915)
	deadline := time.After(5 * time.Second)
	for {
		jobs, _ := svc.Jobs(context.Background(), 1)
		if len(jobs) == 1 && jobs[0].Status == domain.JobStatusDone {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never completed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunWorker() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunWorker did not stop")
	}

	if _, err := svc.Submit(req915); !errors.Is(err, recorder.ErrQueueClosed) {
		t.Errorf("Submit after shutdown = %v, want ErrQueueClosed", err)
	}

	rejected, ok, err := svc.Job(context.Background(), "job-2")
	if err != nil || !ok {
		t.Fatalf("Job(job-2) = %v, %v", ok, err)
	}
	if rejected.Status != domain.JobStatusDone || rejected.Succeeded || !strings.Contains(rejected.Error, "queue closed") {
		t.Errorf("rejected job = %+v", rejected)
	}
}

func TestService_FinishedJobsStayDone(t *testing.T) {
	tests := []struct {
		name    string
		history bool
		jobs    int
	}{
		{"history", true, 300},
		{"event buffer", false, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, func(c *config.Config) {
				c.History = tt.history
				c.SigMF = false
			})
			n := 0
			svc, err := New(cfg, Options{
				Runner: &stubRunner{},
				NewID: func() string {
					n++
					return fmt.Sprintf("j%d", n)
				},
			})
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			defer svc.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go svc.RunWorker(ctx)

			for i := 0; i < tt.jobs; i++ {
				if _, err := svc.Submit(req915); err != nil {
					t.Fatalf("Submit() error = %v", err)
				}
			}

			var pending []string
			deadline := time.Now().Add(30 * time.Second)
			for {
				jobs, err := svc.Jobs(context.Background(), tt.jobs)
				if err != nil {
					t.Fatalf("Jobs() error = %v", err)
				}
				pending = pending[:0]
				for _, j := range jobs {
					if j.Status != domain.JobStatusDone {
						pending = append(pending, fmt.Sprintf("%s=%s", j.ID, j.Status))
					}
				}
				if len(jobs) == tt.jobs && len(pending) == 0 {
					break
				}
				if time.Now().After(deadline) {
					t.Fatalf("%d/%d jobs listed, not done: %v", len(jobs), tt.jobs, pending)
				}
				time.Sleep(10 * time.Millisecond)
			}

			last, ok, err := svc.Job(context.Background(), fmt.Sprintf("j%d", tt.jobs))
			if err != nil || !ok || last.Status != domain.JobStatusDone {
				t.Errorf("Job(last) = %+v, %v, %v", last, ok, err)
			}
		})
	}
}

func TestService_InfoAndDryRun(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.FreqExcluded = []string{"-88"}
		c.AGC = false
		c.Gain = 10
	})
	svc := newTestService(t, cfg, &stubRunner{})

	info := svc.Info()
	if info.SDR != "bladerf" || info.PathPrefix != cfg.Path || info.Version != Version {
		t.Errorf("Info() = %+v", info)
	}
	if len(info.FreqExcluded) != 1 || info.FreqExcluded[0] != "-88" {
		t.Errorf("FreqExcluded = %v", info.FreqExcluded)
	}

	args := svc.DryRun(req915)
	if args[0] != "bladeRF-cli" || args[4] != "set gain rx 10" {
		t.Errorf("DryRun() = %v", args)
	}
}

func TestNew_RequiresValidatedConfig(t *testing.T) {
	if _, err := New(&config.Config{}, Options{}); err == nil {
		t.Error("expected error for unvalidated config")
	}
}
