package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

var DB *sql.DB

// Schema for the ledger substrate and wallet credentials. Record blobs are
// fixed-layout byte strings keyed by the account's derived address.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		address CHAR(64) NOT NULL PRIMARY KEY,
		owner   VARCHAR(64) NOT NULL,
		balance BIGINT UNSIGNED NOT NULL DEFAULT 0,
		data    VARBINARY(256) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		address       CHAR(64) NOT NULL PRIMARY KEY,
		password_hash VARCHAR(255) NOT NULL,
		created_at    BIGINT NOT NULL
	)`,
}

func InitDB() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)

	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	err = DB.Ping()
	if err != nil {
		log.Fatal("Database connection is not active:", err)
	}

	for _, stmt := range schema {
		if _, err := DB.Exec(stmt); err != nil {
			log.Fatal("Failed to apply schema:", err)
		}
	}

	fmt.Println("Database connected successfully!")
}
