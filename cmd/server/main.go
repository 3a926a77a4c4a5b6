package main

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"lifeboard/internal/config"
	"lifeboard/internal/ops"
	"lifeboard/internal/serverapp"
)

func main() {
	cfg, err := config.Load("lifeboard_config.yml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	handler, err := serverapp.NewHandler(serverapp.Options{
		Config:        cfg,
		StaticDir:     "static",
		UseDiskStatic: serverapp.UseDiskStaticByEnv(),
		Logger:        log.Default(),
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	if cfg.Backup.Enabled {
		c := cron.New()
		_, err := c.AddFunc(cfg.Backup.Schedule, func() {
			ts := time.Now().UTC().Format("20060102T150405Z")
			archive := filepath.Join(cfg.Backup.Dir, "lifeboard-"+ts+".tar.gz")
			if err := ops.BackupDataDir(cfg.Server.DataDir, archive); err != nil {
				log.Printf("scheduled backup failed: %v", err)
				return
			}
			if err := ops.VerifyArchive(archive); err != nil {
				log.Printf("scheduled backup suspect: %v", err)
				return
			}
			log.Printf("scheduled backup written: %s", archive)
		})
		if err != nil {
			log.Fatalf("backup schedule %q: %v", cfg.Backup.Schedule, err)
		}
		c.Start()
		defer c.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("listening on http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
