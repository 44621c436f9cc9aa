// Command valor runs the vlugin dispatch engine behind an HTTP listener,
// with an optional management side-listener for metrics and routes, plus a
// "run" subcommand for loading and smoke-testing one plugin without
// standing up the whole server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/valor/app/builtin"
	"github.com/umputun/valor/app/dispatch"
	"github.com/umputun/valor/app/loader"
	"github.com/umputun/valor/app/mgmt"
	"github.com/umputun/valor/lib"
)

var opts struct {
	Listen string `short:"l" long:"listen" env:"LISTEN" default:"0.0.0.0:8080" description:"listen on host:port"`

	Plugins []string `short:"p" long:"plugin" env:"PLUGIN" env-delim:"," description:"plugin descriptor file(s) to load at startup"`

	Proxy struct {
		Enabled bool `long:"enabled" env:"ENABLED" description:"mount the built-in reverse-proxy plugin"`
	} `group:"proxy" namespace:"proxy" env-namespace:"PROXY"`

	Management struct {
		Enabled bool   `long:"enabled" env:"ENABLED" description:"enable management listener"`
		Listen  string `long:"listen" env:"LISTEN" default:"0.0.0.0:8081" description:"management listen address"`
	} `group:"mgmt" namespace:"mgmt" env-namespace:"MGMT"`

	Logger struct {
		StdOut     bool   `long:"stdout" env:"STDOUT" description:"enable stdout logging"`
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable rotated access log"`
		FileName   string `long:"file" env:"FILE" default:"access.log" description:"location of access log"`
		MaxSize    int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum log size in MB before rotation"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"10" description:"maximum number of old log files to retain"`
	} `group:"logger" namespace:"logger" env-namespace:"LOGGER"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`

	Run struct {
		Descriptor string `short:"d" long:"descriptor" required:"true" description:"path to a plugin descriptor JSON file"`
	} `command:"run" description:"load a single plugin and send it one ping, then exit"`
}

var revision = "unknown"

func main() {
	fmt.Printf("valor %s\n", revision)

	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	p.SubcommandsOptional = true
	if _, err := p.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	setupLog(opts.Dbg)

	if p.Active != nil && p.Active.Name == "run" {
		if runErr := runOnce(opts.Run.Descriptor); runErr != nil {
			log.Fatalf("[ERROR] run failed: %v", runErr)
		}
		return
	}

	if err := serve(); err != nil {
		log.Fatalf("[ERROR] valor server failed, %v", err)
	}
}

func serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	web, err := loader.NewWeb(ctx)
	if err != nil {
		return fmt.Errorf("can't init web loader: %w", err)
	}
	l := loader.Chain{loader.NewNative(), web, loader.Dummy{}}

	engine := dispatch.New(l)

	healthDesc, health := builtin.NewHealth()
	engine.WithPlugin(healthDesc, health)

	regDesc := lib.Descriptor{Name: builtin.RegistryName, Prefix: builtin.RegistryPrefix, Kind: lib.KindStatic}
	engine.WithPlugin(regDesc, builtin.NewRegistry(engine.Registry(), engine.Loader()))

	if opts.Proxy.Enabled {
		proxyDesc := lib.Descriptor{Name: "proxy", Prefix: "", Kind: lib.KindStatic}
		engine.WithPlugin(proxyDesc, builtin.NewProxy(engine.Registry()))
	}

	for _, path := range opts.Plugins {
		d, derr := loadDescriptor(path)
		if derr != nil {
			return fmt.Errorf("can't load descriptor %s: %w", path, derr)
		}
		if lerr := engine.LoadPlugin(ctx, d); lerr != nil {
			return fmt.Errorf("can't load plugin %s: %w", d.Name, lerr)
		}
	}

	accessLog, alErr := makeAccessLogWriter()
	if alErr != nil {
		return fmt.Errorf("failed to open access log: %w", alErr)
	}
	defer func() {
		if logErr := accessLog.Close(); logErr != nil {
			log.Printf("[WARN] can't close access log, %v", logErr)
		}
	}()

	metrics := mgmt.NewMetrics()
	if opts.Management.Enabled {
		go func() {
			mgSrv := mgmt.Server{Listen: opts.Management.Listen, Registry: engine.Registry(), Version: revision, Metrics: metrics}
			if mgErr := mgSrv.Run(ctx); mgErr != nil {
				log.Printf("[WARN] management server failed, %v", mgErr)
			}
		}()
	}

	handler := metrics.Middleware(transportHandler(engine, accessLog))

	httpServer := http.Server{
		Addr:              opts.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		if shErr := httpServer.Shutdown(shCtx); shErr != nil {
			log.Printf("[WARN] server shutdown, %v", shErr)
		}
	}()

	log.Printf("[INFO] valor listening on %s", opts.Listen)
	err = httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// transportHandler is the one place net/http meets dispatch.Engine: it
// converts each inbound request, calls OnMsg, writes the answer, and logs
// the exchange the way the teacher's access logger does.
func transportHandler(engine *dispatch.Engine, accessLog *lumberjack.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg := dispatch.FromHTTPRequest(r)
		answer, err := engine.OnMsg(r.Context(), msg)
		if err != nil {
			dispatch.WriteError(w, err)
			logAccess(accessLog, r, 0, err)
			return
		}
		if writeErr := dispatch.WriteAnswer(w, answer); writeErr != nil {
			log.Printf("[WARN] write response: %v", writeErr)
		}
		logAccess(accessLog, r, 200, nil)
	})
}

func logAccess(accessLog *lumberjack.Logger, r *http.Request, status int, err error) {
	if opts.Logger.Enabled {
		fmt.Fprintf(accessLog, "%s %s %s %d %v\n", time.Now().Format(time.RFC3339), r.Method, r.URL.Path, status, err) //nolint:errcheck
	}
	if opts.Logger.StdOut {
		log.Printf("[INFO] %s %s -> %d (%v)", r.Method, r.URL.Path, status, err)
	}
}

func makeAccessLogWriter() (*lumberjack.Logger, error) {
	return &lumberjack.Logger{
		Filename:   opts.Logger.FileName,
		MaxSize:    opts.Logger.MaxSize,
		MaxBackups: opts.Logger.MaxBackups,
		Compress:   true,
	}, nil
}

func loadDescriptor(path string) (lib.Descriptor, error) {
	var d lib.Descriptor
	data, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	err = json.Unmarshal(data, &d)
	return d, err
}

// runOnce implements the supplemented "run" subcommand (DESIGN.md): load one
// plugin descriptor, create it, send it a Ping, report the result, and
// exit. Mirrors original_source's standalone plugin-runner binary without
// carrying over its Module/Method/Call vocabulary.
func runOnce(descriptorPath string) error {
	d, err := loadDescriptor(descriptorPath)
	if err != nil {
		return fmt.Errorf("read descriptor: %w", err)
	}

	ctx := context.Background()
	web, err := loader.NewWeb(ctx)
	if err != nil {
		return fmt.Errorf("init web loader: %w", err)
	}
	l := loader.Chain{loader.NewNative(), web, loader.Dummy{}}

	factory, err := l.Load(ctx, d)
	if err != nil {
		return fmt.Errorf("load %s: %w", d.Name, err)
	}
	h, err := factory(ctx, d.Config)
	if err != nil {
		return fmt.Errorf("instantiate %s: %w", d.Name, err)
	}
	if err := h.OnCreate(ctx); err != nil {
		return fmt.Errorf("on_create %s: %w", d.Name, err)
	}

	answer, err := h.OnMsg(ctx, lib.PingMessage{})
	if err != nil {
		return fmt.Errorf("ping %s: %w", d.Name, err)
	}
	if _, ok := answer.(lib.PongAnswer); !ok {
		return fmt.Errorf("plugin %s answered %T to Ping, expected Pong", d.Name, answer)
	}
	log.Printf("[INFO] plugin %s loaded and answered Pong", d.Name)
	return nil
}

func setupLog(dbg bool) {
	if dbg {
		log.Setup(log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces)
		return
	}
	log.Setup(log.Msec, log.LevelBraces)
}
