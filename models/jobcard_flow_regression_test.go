package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/mmdatafocus/efficiency_backend/utils"
	"github.com/mmdatafocus/efficiency_backend/workflow"
)

func TestJobCardValidationAndEfficiencyFlow(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "efficiency_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)

	// Seed masters.
	supervisor, err := models.CreateEmployee(ctx, &models.NewEmployee{
		EcNumber: "SUP001",
		Name:     "Shift Supervisor",
		Password: "secret123",
		Role:     string(models.RoleSupervisor),
		JoinDate: "2020-01-15",
	})
	if err != nil {
		t.Fatalf("CreateEmployee supervisor: %v", err)
	}
	operator, err := models.CreateEmployee(ctx, &models.NewEmployee{
		EcNumber: "EC1001",
		Name:     "Line Operator",
		Password: "secret123",
		Role:     string(models.RoleOperator),
		JoinDate: "2021-03-01",
	})
	if err != nil {
		t.Fatalf("CreateEmployee operator: %v", err)
	}
	machine, err := models.CreateMachine(ctx, &models.NewMachine{
		MachineCode: "CNC-01",
		WorkCenter:  "WC-A",
	})
	if err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}
	stdHours := 0.5
	activity, err := models.CreateActivityCode(ctx, &models.NewActivityCode{
		Code:            "MILL",
		Description:     "Milling",
		StdHoursPerUnit: &stdHours,
		EfficiencyType:  string(models.EfficiencyTypeTimeBased),
	})
	if err != nil {
		t.Fatalf("CreateActivityCode: %v", err)
	}
	workOrder, err := models.CreateWorkOrder(ctx, &models.NewWorkOrder{
		WoNumber:   "WO-2024-11-001",
		MachineId:  machine.ID,
		PlannedQty: 100,
		MsdMonth:   "2024-11",
	})
	if err != nil {
		t.Fatalf("CreateWorkOrder: %v", err)
	}

	store := workflow.NewGormStore()
	engine := workflow.NewValidationEngine(store)
	efficiency := workflow.NewEfficiencyEngine(store)

	newCard := func(employeeId int, hours, qty float64) *models.JobCard {
		card, err := models.CreateJobCard(ctx, &models.NewJobCard{
			EmployeeId:     &employeeId,
			MachineId:      &machine.ID,
			WorkOrderId:    &workOrder.ID,
			ActivityCodeId: &activity.ID,
			ActivityDesc:   activity.Description,
			Qty:            qty,
			ActualHours:    hours,
			Status:         string(models.JobCardStatusComplete),
			EntryDate:      "2024-11-05",
			Source:         string(models.SourceTechnician),
		})
		if err != nil {
			t.Fatalf("CreateJobCard: %v", err)
		}
		return card
	}

	// 1) First card on the triple is clean.
	first := newCard(operator.ID, 4, 10)
	flags, err := engine.RunForCard(ctx, first)
	if err != nil {
		t.Fatalf("RunForCard first: %v", err)
	}
	if len(flags) != 0 {
		t.Fatalf("first card flags = %d, want 0", len(flags))
	}

	// 2) A second card on the same triple by another employee gets flagged
	// (duplication plus split candidate on both sides).
	second := newCard(supervisor.ID, 2, 5)
	flags, err = engine.RunForCard(ctx, second)
	if err != nil {
		t.Fatalf("RunForCard second: %v", err)
	}
	var dupFlag *models.ValidationFlag
	for _, f := range flags {
		if f.FlagType == models.FlagTypeDuplication {
			dupFlag = f
		}
	}
	if dupFlag == nil {
		t.Fatalf("second card flags = %v, want a DUPLICATION flag", flags)
	}

	// 3) Resolving a flag makes it immutable to the engine.
	resolved, err := models.ResolveValidationFlag(ctx, dupFlag.ID)
	if err != nil {
		t.Fatalf("ResolveValidationFlag: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedBy == nil {
		t.Fatalf("flag not marked resolved: %+v", resolved)
	}
	if _, err := engine.RunForCard(ctx, second); err != nil {
		t.Fatalf("RunForCard rerun: %v", err)
	}
	survivor, err := models.GetValidationFlag(ctx, dupFlag.ID)
	if err != nil {
		t.Fatalf("resolved flag gone after rerun: %v", err)
	}
	if !survivor.Resolved {
		t.Fatalf("rerun flipped resolved flag back: %+v", survivor)
	}

	// 4) Efficiency compute upserts one period row per key.
	periodStart := time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC)

	snap, err := efficiency.ComputeEmployeeEfficiency(ctx, operator.ID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("ComputeEmployeeEfficiency: %v", err)
	}
	// 10 units * 0.5 std hours over 4 actual hours = 125%.
	if snap.TimeEfficiency != 125 {
		t.Fatalf("TimeEfficiency = %v, want 125", snap.TimeEfficiency)
	}

	// Recompute after more work lands; the row is updated, not duplicated.
	third := newCard(operator.ID, 4, 10)
	if _, err := engine.RunForCard(ctx, third); err != nil {
		t.Fatalf("RunForCard third: %v", err)
	}
	if _, err := efficiency.ComputeEmployeeEfficiency(ctx, operator.ID, periodStart, periodEnd); err != nil {
		t.Fatalf("ComputeEmployeeEfficiency recompute: %v", err)
	}

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	var periodCount int64
	err = db.WithContext(ctx).Model(&models.EfficiencyPeriod{}).
		Where("employee_id = ?", operator.ID).Count(&periodCount).Error
	if err != nil {
		t.Fatalf("count efficiency periods: %v", err)
	}
	if periodCount != 1 {
		t.Fatalf("efficiency period rows = %d, want 1", periodCount)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("efficiency-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("efficiency-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=efficiency_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
