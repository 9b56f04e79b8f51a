package db

import (
	"strings"
	"testing"

	"github.com/oakline/upkeep/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDSN(t *testing.T) {
	got := DSN(config.DBConfig{User: "root", Host: "db.local", Port: 3306, Database: "upkeep_x"})
	want := "root@tcp(db.local:3306)/upkeep_x?parseTime=true"
	if got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func TestDSN_WithPassword(t *testing.T) {
	got := DSN(config.DBConfig{User: "upkeep", Password: "pw", Host: "h", Port: 3307, Database: "d"})
	if !strings.HasPrefix(got, "upkeep:pw@tcp(h:3307)/d") {
		t.Errorf("DSN = %q, want credential prefix", got)
	}
}

func TestAutoMigrate(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, table := range []string{"parties", "contractors", "cases", "appointments", "triage_turns", "notification_records"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("expected table %q to exist", table)
		}
	}
}
