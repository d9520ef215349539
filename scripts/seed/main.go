// Command seed loads a minimal working dataset into the portal database:
// an admin account, one teacher, two classes with students, the core
// subjects and the teacher assignments. Every insert is idempotent so the
// command can be re-run against an existing database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-portal-api/pkg/config"
	"github.com/noah-isme/school-portal-api/pkg/database"
)

func main() {
	var (
		adminEmail    string
		adminPassword string
		students      int
	)
	flag.StringVar(&adminEmail, "admin-email", "admin@school.local", "email for the seeded admin account")
	flag.StringVar(&adminPassword, "admin-password", "changeme123", "password for the seeded admin account")
	flag.IntVar(&students, "students", 10, "number of sample students per class")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, db, adminEmail, adminPassword, students); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Println("seed complete")
}

func run(ctx context.Context, db *sqlx.DB, adminEmail, adminPassword string, studentsPerClass int) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	if err := insertUser(ctx, tx, adminEmail, adminPassword, "Portal Admin", "ADMIN", now); err != nil {
		return err
	}
	teacherID, err := insertUserReturning(ctx, tx, "teacher@school.local", adminPassword, "Sample Teacher", "TEACHER", now)
	if err != nil {
		return err
	}

	subjects := map[string]string{
		"MTH": "Mathematics",
		"ENG": "English Language",
		"SCI": "Basic Science",
	}
	subjectIDs := make([]string, 0, len(subjects))
	for code, name := range subjects {
		id, err := insertSubject(ctx, tx, code, name, now)
		if err != nil {
			return err
		}
		subjectIDs = append(subjectIDs, id)
	}
	for _, subjectID := range subjectIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subject_teachers (subject_id, teacher_id, created_at) VALUES ($1, $2, $3)
             ON CONFLICT DO NOTHING`,
			subjectID, teacherID, now); err != nil {
			return fmt.Errorf("assign teacher: %w", err)
		}
	}

	for i, className := range []string{"JSS1A", "JSS1B"} {
		classID, err := insertClass(ctx, tx, className, teacherID, now)
		if err != nil {
			return err
		}
		for n := 1; n <= studentsPerClass; n++ {
			seq := i*studentsPerClass + n
			email := fmt.Sprintf("student%03d@school.local", seq)
			fullName := fmt.Sprintf("Sample Student %03d", seq)
			userID, err := insertUserReturning(ctx, tx, email, adminPassword, fullName, "STUDENT", now)
			if err != nil {
				return err
			}
			admission := fmt.Sprintf("ADM-%04d", seq)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO students (id, user_id, admission_number, class_id, active, created_at, updated_at)
                 VALUES ($1, $2, $3, $4, TRUE, $5, $5)
                 ON CONFLICT (admission_number) DO NOTHING`,
				uuid.NewString(), userID, admission, classID, now); err != nil {
				return fmt.Errorf("insert student %s: %w", admission, err)
			}
		}
	}

	return tx.Commit()
}

func insertUser(ctx context.Context, tx *sqlx.Tx, email, password, fullName, role string, now time.Time) error {
	_, err := insertUserReturning(ctx, tx, email, password, fullName, role, now)
	return err
}

// insertUserReturning creates the user if missing and always returns the
// row's ID, whether freshly inserted or pre-existing.
func insertUserReturning(ctx context.Context, tx *sqlx.Tx, email, password, fullName, role string, now time.Time) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	var id string
	err = tx.GetContext(ctx, &id,
		`INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
         ON CONFLICT (email) DO UPDATE SET updated_at = EXCLUDED.updated_at
         RETURNING id`,
		uuid.NewString(), email, string(hash), fullName, role, now)
	if err != nil {
		return "", fmt.Errorf("insert user %s: %w", email, err)
	}
	return id, nil
}

func insertSubject(ctx context.Context, tx *sqlx.Tx, code, name string, now time.Time) (string, error) {
	var id string
	err := tx.GetContext(ctx, &id,
		`INSERT INTO subjects (id, code, name, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $4)
         ON CONFLICT (code) DO UPDATE SET updated_at = EXCLUDED.updated_at
         RETURNING id`,
		uuid.NewString(), code, name, now)
	if err != nil {
		return "", fmt.Errorf("insert subject %s: %w", code, err)
	}
	return id, nil
}

func insertClass(ctx context.Context, tx *sqlx.Tx, name, homeroomTeacherID string, now time.Time) (string, error) {
	var id string
	err := tx.GetContext(ctx, &id,
		`INSERT INTO classes (id, name, homeroom_teacher_id, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $4)
         ON CONFLICT (name) DO UPDATE SET updated_at = EXCLUDED.updated_at
         RETURNING id`,
		uuid.NewString(), name, homeroomTeacherID, now)
	if err != nil {
		return "", fmt.Errorf("insert class %s: %w", name, err)
	}
	return id, nil
}
