package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/ouraview/internal/api"
	"github.com/lox/ouraview/internal/config"
	"github.com/lox/ouraview/internal/oura"
	"github.com/lox/ouraview/internal/sensor"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("ouraview"),
		kong.Description("Polls the Oura cloud API and serves ring metrics as sensor entities."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	defs := oura.Definitions()
	cfg, err := config.Load(cli.Config, defs)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.AccessToken != "" {
		client := oura.NewClient(oura.StaticTokenSource(cfg.AccessToken))
		info, err := client.UserInfo(ctx)
		if err != nil {
			log.Fatalf("access token rejected: %v", err)
		}
		log.Printf("authenticated as %v", info["email"])
	}

	redirectURL := cli.BaseURL + api.OAuthCallbackPath

	keys := make([]string, 0, len(cfg.Sensors))
	for key := range cfg.Sensors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sensors []*sensor.Sensor
	tokens := map[string]*oura.TokenStore{}
	for _, key := range keys {
		def := defs[key]
		sensorCfg := cfg.Sensors[key].Reconcile(def)

		var source oura.TokenSource
		if cfg.AccessToken != "" {
			source = oura.StaticTokenSource(cfg.AccessToken)
		} else {
			path := filepath.Join(cli.TokenDir, oura.TokenFileName(sensorCfg.Name))
			store := oura.NewTokenStore(path, cfg.ClientID, cfg.ClientSecret, redirectURL)
			tokens[sensorCfg.Name] = store
			if !store.HasCredentials() {
				log.Printf("%s: no token cache yet, authorize at %s",
					sensorCfg.Name, store.AuthorizeURL(sensorCfg.Name))
			}
			source = store
		}

		sensors = append(sensors, sensor.New(def, sensorCfg, oura.NewClient(source)))
	}
	log.Printf("configured %d sensors", len(sensors))

	scheduler := sensor.NewScheduler(sensors, cli.ScanInterval)
	server := api.NewServer(scheduler, tokens, cli.Port)

	if cli.Once {
		log.Println("running single update cycle")
		scheduler.UpdateOnce(ctx)
		log.Println("done")
		return
	}

	if !cli.NoPoll {
		go scheduler.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	log.Printf("starting server on :%s", cli.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
