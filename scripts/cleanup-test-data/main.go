// cleanup-test-data removes test-like projects from the database.
//
// Test patterns matched against problem_domain (case-insensitive):
// - ^test (starts with "test")
// - test$ (ends with "test")
// - ^debug (debug prefix)
// - ^todo (todo prefix)
// - ^fixme (fixme prefix)
// - ^dummy (dummy prefix)
// - ^sample (sample prefix)
// - ^example (example prefix)
// - \d{4}$ (ends with 4 digits, e.g., "Healthcare2026")
//
// Usage: go run ./scripts/cleanup-test-data <owner-id>
//
// Database connection: Uses standard PG* environment variables
//
// Deleting a project cascades to its document rows.
//
// Flags:
//
//	-dry-run   Show what would be deleted without actually deleting (default: true)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
)

// testDomainPatterns defines regex patterns that identify test projects.
// These patterns are used with PostgreSQL's ~* (case-insensitive regex) operator.
var testDomainPatterns = []string{
	`^test`,    // Starts with "test"
	`test$`,    // Ends with "test"
	`^debug`,   // Debug prefix
	`^todo`,    // Todo prefix
	`^fixme`,   // Fixme prefix
	`^dummy`,   // Dummy prefix
	`^sample`,  // Sample prefix
	`^example`, // Example prefix
	`\d{4}$`,   // Ends with 4 digits (year-like suffix)
}

func main() {
	dryRun := flag.Bool("dry-run", true, "Show what would be deleted without actually deleting")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-dry-run=false] <owner-id>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		fmt.Fprintf(os.Stderr, "  -dry-run  Show what would be deleted without deleting (default: true)\n")
		os.Exit(1)
	}
	ownerID := args[0]

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, buildConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to actually delete projects")
		fmt.Println()
	}

	totalDeleted := 0
	for _, pattern := range testDomainPatterns {
		count, err := cleanupTestProjects(ctx, conn, ownerID, pattern, *dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error cleaning pattern %q: %v\n", pattern, err)
			os.Exit(1)
		}
		totalDeleted += count
	}

	if *dryRun {
		fmt.Printf("\nTotal projects that would be deleted: %d\n", totalDeleted)
	} else {
		fmt.Printf("\nTotal projects deleted: %d\n", totalDeleted)
	}
}

// cleanupTestProjects deletes projects whose problem_domain matches the given
// regex pattern. If dryRun is true, it only shows what would be deleted
// without making changes.
func cleanupTestProjects(ctx context.Context, conn *pgx.Conn, ownerID, pattern string, dryRun bool) (int, error) {
	if dryRun {
		// Show what would be deleted
		rows, err := conn.Query(ctx, `
			SELECT id, problem_domain, status, created_at::text
			FROM engine_projects
			WHERE owner_id = $1
			  AND problem_domain ~* $2
		`, ownerID, pattern)
		if err != nil {
			return 0, fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		var count int
		for rows.Next() {
			var id, domain, status, createdAt string
			if err := rows.Scan(&id, &domain, &status, &createdAt); err != nil {
				return 0, fmt.Errorf("scan failed: %w", err)
			}
			count++
			fmt.Printf("  [%s] %s %q - %s (created: %s)\n", pattern, id, truncate(domain, 60), status, createdAt)
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("rows iteration failed: %w", err)
		}

		if count == 0 {
			fmt.Printf("  [%s] No matching projects\n", pattern)
		}
		return count, nil
	}

	// Actually delete; documents go with their project via ON DELETE CASCADE
	result, err := conn.Exec(ctx, `
		DELETE FROM engine_projects
		WHERE owner_id = $1
		  AND problem_domain ~* $2
	`, ownerID, pattern)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	count := int(result.RowsAffected())
	fmt.Printf("Deleted %d projects matching pattern: %s\n", count, pattern)
	return count, nil
}

func buildConnString() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "postgres")
	password := os.Getenv("PGPASSWORD")
	dbname := getEnvOrDefault("PGDATABASE", "zelta_engine")

	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password != "" {
		connStr += fmt.Sprintf(" password=%s", password)
	}
	return connStr
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// truncate shortens a string to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
