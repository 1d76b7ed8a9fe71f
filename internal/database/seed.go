package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const studentDDL = `
CREATE TABLE STUDENT(
    STUDENT_ID INT PRIMARY KEY,
    NAME VARCHAR(25),
    CITY VARCHAR(25),
    ENGLISH INT,
    MATHS INT,
    SCIENCE INT,
    HINDI INT,
    HISTORY INT,
    GEOGRAPHY INT,
    COMPUTER INT,
    TOTAL INT,
    PERCENTAGE FLOAT,
    GRADE CHAR(1)
)`

// Student is one row of the sample dataset.
type Student struct {
	ID         int
	Name       string
	City       string
	English    int
	Maths      int
	Science    int
	Hindi      int
	History    int
	Geography  int
	Computer   int
	Total      int
	Percentage float64
	Grade      string
}

func (s Student) values() []any {
	return []any{
		s.ID, s.Name, s.City,
		s.English, s.Maths, s.Science, s.Hindi, s.History, s.Geography, s.Computer,
		s.Total, s.Percentage, s.Grade,
	}
}

// SampleStudents is the dataset written by Seed.
var SampleStudents = []Student{
	{1, "Rohan", "Nagpur", 90, 85, 88, 92, 80, 95, 88, 530, 88.33, "A"},
	{2, "Priya", "Mumbai", 75, 80, 78, 70, 85, 90, 79, 478, 79.67, "B"},
	{3, "Amit", "Nagpur", 81, 79, 85, 88, 90, 87, 85, 510, 85.00, "A"},
	{4, "Sneha", "Pune", 95, 92, 90, 94, 88, 91, 93, 560, 93.33, "A"},
	{5, "Vikram", "Nagpur", 65, 70, 72, 68, 75, 80, 71, 430, 71.67, "C"},
	{6, "Anjali", "Nagpur", 92, 89, 94, 90, 85, 88, 90, 538, 89.67, "A"},
	{7, "Karan", "Delhi", 78, 82, 80, 76, 79, 85, 81, 480, 80.00, "B"},
	{8, "Meera", "Nagpur", 88, 90, 85, 87, 92, 91, 89, 533, 88.83, "A"},
	{9, "Ravi", "Chennai", 70, 75, 78, 72, 74, 80, 75, 449, 74.83, "C"},
	{10, "Sonal", "Nagpur", 85, 88, 90, 86, 84, 89, 87, 522, 87.00, "A"},
}

// Seed recreates the STUDENT table and fills it with SampleStudents in a
// single transaction. Any existing STUDENT table is dropped first.
func Seed(ctx context.Context, db *sql.DB, driver string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS STUDENT"); err != nil {
		return fmt.Errorf("drop STUDENT: %w", err)
	}
	if _, err = tx.ExecContext(ctx, studentDDL); err != nil {
		return fmt.Errorf("create STUDENT: %w", err)
	}

	insert := "INSERT INTO STUDENT VALUES (" + placeholders(driver, 13) + ")"
	for _, s := range SampleStudents {
		if _, err = tx.ExecContext(ctx, insert, s.values()...); err != nil {
			return fmt.Errorf("insert student %d: %w", s.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

func placeholders(driver string, n int) string {
	marks := make([]string, n)
	for i := range marks {
		if driver == DriverPostgres {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = "?"
		}
	}
	return strings.Join(marks, ", ")
}
