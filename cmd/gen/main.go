package main

import (
	"flag"

	"gorm.io/driver/postgres"
	"gorm.io/gen"
	"gorm.io/gorm"
	"restaurant_pos/custom/util"
	"restaurant_pos/model"
)

// Generates type-safe DAO code for the POS models into ./dal for ad hoc
// reporting and maintenance scripts.
func main() {
	configPath := flag.String("config", "./config/config.yaml", "path of the yaml config")
	outPath := flag.String("out", "./dal", "output directory")
	flag.Parse()

	serverConfig := util.ServerConfig{}
	serverConfig.GetConf(*configPath)

	g := gen.NewGenerator(gen.Config{
		OutPath: *outPath,
		Mode:    gen.WithDefaultQuery | gen.WithQueryInterface, // generate mode
	})

	db, err := gorm.Open(postgres.Open(serverConfig.Postgres.DSN()), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	g.UseDB(db) // reuse your gorm db

	g.ApplyBasic(model.ALL_POS_TABLES...)

	g.Execute()
}
