//go:build integration

package integration

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/config"
	"github.com/eliteGoblin/focusd/disp_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
	"github.com/eliteGoblin/focusd/disp_mon/internal/server"
	"github.com/eliteGoblin/focusd/disp_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/disp_mon/test/fixtures"
)

var _ = Describe("Control API", func() {
	var (
		tmpDir    string
		processes *fixtures.ProcessTable
		display   *fixtures.RecordingDisplay
		registry  *usecase.WatcherRegistry
		instances *infra.FileRegistry
		srv       *http.Server
		client    *server.Client
		ctx       context.Context
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "dispmon-control-*")
		Expect(err).NotTo(HaveOccurred())
		configPath := filepath.Join(tmpDir, "dispmon.toml")
		writeSettings(configPath, cs2Exe, "display", "")

		cfg, err := config.Load(configPath)
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		processes = fixtures.NewProcessTable()
		display = fixtures.NewRecordingDisplay(desktopMode)
		pm := infra.NewProcessManagerWithLister(processes)
		factory := daemon.NewFactory(pm, display, nil, nil, logger)
		registry = usecase.NewWatcherRegistry(factory, cfg, display, logger)

		router := server.NewRouter(registry, display, nil, infra.ExecModeUser.String(), "test", logger)
		var addr net.Addr
		srv, addr, err = server.Listen("127.0.0.1:0", router.Handler(), logger)
		Expect(err).NotTo(HaveOccurred())
		client = server.NewClient(addr.String(), time.Second, logger)

		instances = infra.NewFileRegistry(filepath.Join(tmpDir, "data", "instance.json"), infra.NewProcessManager())
		Expect(instances.Register(domain.Instance{
			PID:         os.Getpid(),
			ControlAddr: addr.String(),
			Version:     "test",
			StartedAt:   time.Now().Unix(),
		})).To(Succeed())
	})

	AfterEach(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(srv.Shutdown(shutdownCtx)).To(Succeed())
		Expect(registry.Shutdown(shutdownCtx)).To(Succeed())
		Expect(instances.Clear()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("publishes its address through the instance file", func() {
		inst, err := instances.Get()
		Expect(err).NotTo(HaveOccurred())
		Expect(inst).NotTo(BeNil())

		alive, err := instances.IsAlive()
		Expect(err).NotTo(HaveOccurred())
		Expect(alive).To(BeTrue())

		located := server.NewClient(inst.ControlAddr, time.Second, zap.NewNop())
		Expect(located.IsReachable(ctx)).To(BeTrue())
	})

	It("toggles watching and reports the game state", func() {
		watching, err := client.Toggle(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(watching).To(BeTrue())

		processes.Launch(cs2Exe)
		Eventually(func() (bool, error) { return client.IsGameRunning(ctx) }).Should(BeTrue())
		Eventually(display.Current).Should(Equal(gameMode))

		status, err := client.Status(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Watching).To(BeTrue())
		Expect(status.Running).To(BeTrue())
		Expect(status.Target).To(Equal(cs2Exe))
		Expect(status.Mode).To(HaveValue(Equal(gameMode)))

		watching, err = client.Toggle(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(watching).To(BeFalse())
	})

	It("scans and selects monitors", func() {
		cached, err := client.Monitors(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(cached).To(BeEmpty())

		scanned, err := client.ScanMonitors(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(scanned).To(HaveKey(`\\.\DISPLAY2`))

		Expect(client.SelectMonitor(ctx, `\\.\DISPLAY2`)).To(Succeed())
		Expect(registry.Watcher().Mode().MonitorName).To(Equal(`\\.\DISPLAY2`))

		err = client.SelectMonitor(ctx, `\\.\DISPLAY9`)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown monitor"))
	})

	It("restores the display defaults on request", func() {
		Expect(display.ChangeMode(gameMode, false)).To(Succeed())
		Expect(client.RestoreDefaults(ctx)).To(Succeed())
		Expect(display.Current()).To(Equal(desktopMode))
	})

	It("serves an empty history when history is disabled", func() {
		events, err := client.History(ctx, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(BeEmpty())
	})
})
