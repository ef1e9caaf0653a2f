package db

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewPSQLStorage() (*gorm.DB, error) {

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}


	connString := os.Getenv("DB_URL")


	db, err := gorm.Open(postgres.Open(connString), &gorm.Config{
		// Unique violations surface as gorm.ErrDuplicatedKey; the booking
		// transaction relies on this to detect a lost slot race.
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	// Optional: Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(25)

	sqlDB.SetMaxIdleConns(25)

	return db, nil
}
