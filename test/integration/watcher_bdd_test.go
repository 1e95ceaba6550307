//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/config"
	"github.com/eliteGoblin/focusd/disp_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
	"github.com/eliteGoblin/focusd/disp_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/disp_mon/test/fixtures"
)

const (
	cs2Exe      = `C:\Program Files (x86)\Steam\steamapps\common\Counter-Strike Global Offensive\game\bin\win64\cs2.exe`
	valorantExe = `C:\Riot Games\VALORANT\live\ShooterGame\Binaries\Win64\VALORANT-Win64-Shipping.exe`
)

var (
	desktopMode = domain.DisplayMode{Width: 2560, Height: 1440, RefreshRate: 165}
	gameMode    = domain.DisplayMode{Width: 1280, Height: 960, RefreshRate: 240}
)

// writeSettings writes a watcher section with a fast poll interval.
func writeSettings(path, gamePath, strategy string, extra string) {
	content := fmt.Sprintf(`[watcher]
game_path = '%s'
width = %d
height = %d
refresh_rate = %d
strategy = "%s"
poll_interval = "20ms"
%s
[topology]
keep = ['DISPLAY\GSM5B7F\1']
`, gamePath, gameMode.Width, gameMode.Height, gameMode.RefreshRate, strategy, extra)
	Expect(os.WriteFile(path, []byte(content), 0600)).To(Succeed())
}

var _ = Describe("Watching a game", func() {
	var (
		tmpDir     string
		configPath string
		processes  *fixtures.ProcessTable
		display    *fixtures.RecordingDisplay
		devices    *fixtures.RecordingTopology
		history    *infra.SQLHistoryStore
		registry   *usecase.WatcherRegistry
	)

	ops := func() []string {
		var out []string
		for _, c := range display.Calls() {
			out = append(out, c.Op)
		}
		return out
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dispmon-integration-*")
		Expect(err).NotTo(HaveOccurred())
		configPath = filepath.Join(tmpDir, "dispmon.toml")

		processes = fixtures.NewProcessTable()
		display = fixtures.NewRecordingDisplay(desktopMode)
		devices = fixtures.NewRecordingTopology(`DISPLAY\GSM5B7F\1`, `DISPLAY\DELA0A3\2`, `DISPLAY\AUS27AF\3`)

		history, err = infra.NewSQLHistoryStore(filepath.Join(tmpDir, "data", "history.db"), nil)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.Load(configPath)
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		pm := infra.NewProcessManagerWithLister(processes)
		factory := daemon.NewFactory(pm, display, devices, history, logger)
		registry = usecase.NewWatcherRegistry(factory, cfg, display, logger)
	})

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(registry.Shutdown(ctx)).To(Succeed())
		Expect(history.Close()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Context("when no game path is configured", func() {
		It("refuses to start watching", func() {
			watching, err := registry.Toggle()
			Expect(err).To(MatchError(domain.ErrGamePathUnset))
			Expect(watching).To(BeFalse())
			Expect(registry.IsWatching()).To(BeFalse())
		})
	})

	Context("with the display strategy", func() {
		BeforeEach(func() {
			writeSettings(configPath, cs2Exe, "display", "")
			watching, err := registry.Toggle()
			Expect(err).NotTo(HaveOccurred())
			Expect(watching).To(BeTrue())
		})

		It("switches the mode while the game runs and restores after it exits", func() {
			Consistently(ops, "100ms", "20ms").Should(BeEmpty())

			processes.Launch(cs2Exe)
			Eventually(registry.IsGameRunning).Should(BeTrue())
			Eventually(display.Current).Should(Equal(gameMode))

			processes.Exit(cs2Exe)
			Eventually(registry.IsGameRunning).Should(BeFalse())
			Eventually(display.Current).Should(Equal(desktopMode))

			Expect(ops()).To(Equal([]string{"change", "restore"}))
		})

		It("acts once per transition however long the game runs", func() {
			processes.Launch(cs2Exe)
			Eventually(ops).Should(Equal([]string{"change"}))
			Consistently(ops, "150ms", "20ms").Should(Equal([]string{"change"}))

			processes.Exit(cs2Exe)
			Eventually(ops).Should(Equal([]string{"change", "restore"}))

			processes.Launch(cs2Exe)
			Eventually(ops).Should(Equal([]string{"change", "restore", "change"}))
		})

		It("ignores a process with the same name at another path", func() {
			processes.Launch(`D:\Other\cs2.exe`)
			Consistently(registry.IsGameRunning, "150ms", "20ms").Should(BeFalse())
			Expect(ops()).To(BeEmpty())
		})

		It("leaves the game mode in place when watching stops mid-session", func() {
			processes.Launch(cs2Exe)
			Eventually(display.Current).Should(Equal(gameMode))

			watching, err := registry.Toggle()
			Expect(err).NotTo(HaveOccurred())
			Expect(watching).To(BeFalse())
			Eventually(registry.Watcher().Done()).Should(BeClosed())

			processes.Exit(cs2Exe)
			Consistently(ops, "100ms", "20ms").Should(Equal([]string{"change"}))
			Expect(registry.IsGameRunning()).To(BeTrue(), "last observation is kept while idle")

			// watching again observes the exit
			_, err = registry.Toggle()
			Expect(err).NotTo(HaveOccurred())
			Eventually(ops).Should(Equal([]string{"change", "restore"}))
		})

		It("picks up a new target mode on the next start", func() {
			processes.Launch(cs2Exe)
			Eventually(display.Current).Should(Equal(gameMode))

			stretched := domain.DisplayMode{Width: 1024, Height: 768, RefreshRate: 240}
			Expect(registry.SelectOrCreate(domain.WatcherSettings{Mode: stretched})).To(Succeed())
			Consistently(display.Current, "100ms", "20ms").Should(Equal(gameMode))

			processes.Exit(cs2Exe)
			Eventually(display.Current).Should(Equal(desktopMode))
			processes.Launch(cs2Exe)
			Eventually(display.Current).Should(Equal(stretched))
		})

		It("applies the mode to the selected monitor", func() {
			_, err := registry.ScanMonitors()
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.SelectMonitor(`\\.\DISPLAY2`)).To(Succeed())

			processes.Launch(cs2Exe)
			Eventually(display.Current).Should(Equal(gameMode.WithMonitor(`\\.\DISPLAY2`)))
		})

		It("keeps watching when the driver rejects a mode", func() {
			display.FailChanges(&domain.ChangeFailedError{Phase: domain.PhaseTest, Reason: domain.ReasonTestRejected, Code: -2})
			processes.Launch(cs2Exe)
			Eventually(registry.IsGameRunning).Should(BeTrue())
			Expect(registry.IsWatching()).To(BeTrue())

			Eventually(func() ([]domain.SessionEvent, error) { return history.Recent(10) }).Should(
				ContainElement(HaveField("Error", ContainSubstring("test_rejected"))))
		})

		It("records every transition in the session history", func() {
			processes.Launch(cs2Exe)
			Eventually(display.Current).Should(Equal(gameMode))
			processes.Exit(cs2Exe)
			Eventually(display.Current).Should(Equal(desktopMode))

			Eventually(func() (int, error) {
				events, err := history.Recent(10)
				return len(events), err
			}).Should(Equal(2))

			events, err := history.Recent(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events[0].Kind).To(Equal(domain.EdgeStopped))
			Expect(events[1].Kind).To(Equal(domain.EdgeStarted))
			Expect(events[1].Mode).To(Equal(gameMode.String()))
			Expect(events[1].Process).To(Equal(cs2Exe))
			Expect(events[1].Strategy).To(Equal("display"))
		})
	})

	Context("with restore_on_stop", func() {
		BeforeEach(func() {
			writeSettings(configPath, cs2Exe, "display", "restore_on_stop = true")
			_, err := registry.Toggle()
			Expect(err).NotTo(HaveOccurred())
		})

		It("restores once when watching stops mid-session", func() {
			processes.Launch(cs2Exe)
			Eventually(display.Current).Should(Equal(gameMode))

			_, err := registry.Toggle()
			Expect(err).NotTo(HaveOccurred())
			Eventually(registry.Watcher().Done()).Should(BeClosed())

			Expect(ops()).To(Equal([]string{"change", "restore"}))
			Expect(registry.IsGameRunning()).To(BeFalse())
		})
	})

	Context("with the topology strategy", func() {
		BeforeEach(func() {
			writeSettings(configPath, valorantExe, "topology", "")
			_, err := registry.Toggle()
			Expect(err).NotTo(HaveOccurred())
		})

		It("disables every other monitor while the game runs", func() {
			processes.Launch(valorantExe)
			Eventually(devices.Started).Should(Equal([]string{`DISPLAY\GSM5B7F\1`}))

			processes.Exit(valorantExe)
			Eventually(devices.Started).Should(HaveLen(3))

			Expect(devices.Log()).To(Equal([]string{
				`disable DISPLAY\DELA0A3\2`,
				`disable DISPLAY\AUS27AF\3`,
				`enable DISPLAY\DELA0A3\2`,
				`enable DISPLAY\AUS27AF\3`,
			}))
			Expect(display.Calls()).To(BeEmpty())
		})
	})

	Context("when the config file changes", func() {
		BeforeEach(func() {
			writeSettings(configPath, cs2Exe, "display", "")
			_, err := registry.Toggle()
			Expect(err).NotTo(HaveOccurred())
		})

		It("follows a new game path without losing the watching state", func() {
			writeSettings(configPath, valorantExe, "display", "")
			cfg, err := config.Load(configPath)
			Expect(err).NotTo(HaveOccurred())
			settings, err := cfg.WatcherSettings()
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.Reconfigure(settings)).To(Succeed())

			Expect(registry.IsWatching()).To(BeTrue())
			Expect(registry.Watcher().Target().Value).To(Equal(valorantExe))

			processes.Launch(cs2Exe)
			Consistently(ops, "100ms", "20ms").Should(BeEmpty())
			processes.Launch(valorantExe)
			Eventually(ops).Should(Equal([]string{"change"}))
		})

		It("delivers edits through the file watch", func() {
			cfg, err := config.Load(configPath)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			Expect(cfg.Watch(ctx, zap.NewNop(), func(s domain.WatcherSettings, err error) {
				if err == nil {
					_ = registry.Reconfigure(s)
				}
			})).To(Succeed())

			writeSettings(configPath, valorantExe, "display", "")
			Eventually(func() string { return registry.Watcher().Target().Value }, "3s").Should(Equal(valorantExe))
		})
	})
})
