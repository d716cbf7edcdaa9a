package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/damoang/angple-moderation/internal/config"
	"github.com/damoang/angple-moderation/internal/migration"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: configs/config.<APP_ENV>.yaml)")
	verify := flag.Bool("verify", false, "only report which moderation tables exist")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	files := config.LoadDotEnv(".")
	if len(files) == 0 {
		log.Println("No .env file found, using environment variables")
	}

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	if !*verify {
		if err := migration.Run(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Moderation tables migrated")
	}

	statuses, err := migration.Verify(db)
	if err != nil {
		log.Fatalf("Verify failed: %v", err)
	}
	missing := 0
	for _, s := range statuses {
		mark := "OK"
		if !s.Exists {
			mark = "MISSING"
			missing++
		}
		fmt.Printf("  %-32s %s\n", s.Table, mark)
	}
	if missing > 0 {
		os.Exit(1)
	}
}
