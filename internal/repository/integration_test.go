//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iliyamo/cityhelp/internal/database"
	"github.com/iliyamo/cityhelp/internal/geo"
	"github.com/iliyamo/cityhelp/internal/model"
)

var (
	testDB *sqlx.DB
	tc     testcontainers.Container
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	const pass, name = "secret", "cityhelp"
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": pass,
			"MYSQL_DATABASE":      name,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("3306/tcp"),
			wait.ForLog("ready for connections").WithOccurrence(2),
		).WithDeadline(120 * time.Second),
	}

	var err error
	tc, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Println("cannot start container:", err)
		os.Exit(1)
	}

	host, _ := tc.Host(ctx)
	mappedPort, _ := tc.MappedPort(ctx, "3306/tcp")

	for attempt := 0; attempt < 10; attempt++ {
		testDB, err = database.Open("root", pass, host, mappedPort.Port(), name)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		fmt.Println("database.Open:", err)
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}
	if err := database.Migrate(ctx, testDB); err != nil {
		fmt.Println("migrate:", err)
		_ = testDB.Close()
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()

	_ = testDB.Close()
	_ = tc.Terminate(ctx)
	os.Exit(code)
}

func truncateAll(t *testing.T) {
	t.Helper()
	stmts := []string{
		"SET FOREIGN_KEY_CHECKS=0",
		"TRUNCATE TABLE images",
		"TRUNCATE TABLE comments",
		"TRUNCATE TABLE interactions",
		"TRUNCATE TABLE occurrences",
		"TRUNCATE TABLE occurrence_types",
		"TRUNCATE TABLE refresh_tokens",
		"TRUNCATE TABLE users",
		"SET FOREIGN_KEY_CHECKS=1",
	}
	for _, s := range stmts {
		if _, err := testDB.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
}

var userSeq int

func seedUser(t *testing.T) *model.User {
	t.Helper()
	userSeq++
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &model.User{
		Nickname:     fmt.Sprintf("user%d", userSeq),
		Email:        fmt.Sprintf("user%d@example.com", userSeq),
		PasswordHash: "x",
		FirstName:    "First",
		LastName:     "Last",
		BirthDate:    time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := NewUserRepo(testDB).Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func seedOccurrence(t *testing.T, owner *model.User, lat, lng float64, deadline time.Duration) (*model.Type, *model.Occurrence) {
	t.Helper()
	ctx := context.Background()
	typ := &model.Type{Title: fmt.Sprintf("type-%d", time.Now().UnixNano()), DurationSeconds: int64(deadline / time.Second)}
	if err := NewTypeRepo(testDB).Create(ctx, typ); err != nil {
		t.Fatalf("create type: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	o := &model.Occurrence{
		OwnerID: owner.ID, TypeID: typ.ID, Latitude: lat, Longitude: lng,
		Description: "pothole", Active: true, CreatedAt: now, Deadline: now.Add(deadline),
		Counters: model.Counters{Existing: 1},
	}
	if err := NewOccurrenceRepo(testDB).Create(ctx, o); err != nil {
		t.Fatalf("create occurrence: %v", err)
	}
	return typ, o
}

func TestUserRepo_Duplicates(t *testing.T) {
	truncateAll(t)
	u := seedUser(t)
	dup := *u
	dup.ID = 0
	dup.Nickname = "other"
	err := NewUserRepo(testDB).Create(context.Background(), &dup)
	var de *DuplicateError
	if !errors.As(err, &de) || de.Key != KeyUserEmail {
		t.Fatalf("err = %v, want duplicate on %s", err, KeyUserEmail)
	}
}

func TestOccurrenceRepo_ConcurrentReports(t *testing.T) {
	truncateAll(t)
	owner := seedUser(t)
	_, o := seedOccurrence(t, owner, 1, 1, time.Hour)
	repo := NewOccurrenceRepo(testDB)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := &model.Interaction{OccurrenceID: o.ID, ReporterID: owner.ID, Kind: model.InteractionExisting,
				CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
			if _, _, err := repo.RecordInteraction(context.Background(), in, nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("RecordInteraction: %v", err)
	}

	got, err := repo.GetByID(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Existing != 1+n || got.NonExisting != 0 || got.Closure != 0 {
		t.Fatalf("counters = %+v, want existing %d", got.Counters, 1+n)
	}
	items, err := repo.ListInteractions(context.Background(), o.ID)
	if err != nil || len(items) != n {
		t.Fatalf("interactions = %d, %v", len(items), err)
	}
}

func TestOccurrenceRepo_CloseAndInactive(t *testing.T) {
	truncateAll(t)
	owner := seedUser(t)
	_, o := seedOccurrence(t, owner, 1, 1, time.Hour)
	repo := NewOccurrenceRepo(testDB)
	closeAtOne := func(c model.Counters) bool { return c.Closure >= 1 }

	in := &model.Interaction{OccurrenceID: o.ID, ReporterID: owner.ID, Kind: model.InteractionFinalized, CreatedAt: time.Now().UTC()}
	got, closed, err := repo.RecordInteraction(context.Background(), in, closeAtOne)
	if err != nil || !closed || got.Active {
		t.Fatalf("closed=%v active=%v err=%v", closed, got != nil && got.Active, err)
	}

	in = &model.Interaction{OccurrenceID: o.ID, ReporterID: owner.ID, Kind: model.InteractionExisting, CreatedAt: time.Now().UTC()}
	if _, _, err := repo.RecordInteraction(context.Background(), in, closeAtOne); !errors.Is(err, ErrInactive) {
		t.Fatalf("err = %v, want ErrInactive", err)
	}
	if _, _, err := repo.RecordInteraction(context.Background(),
		&model.Interaction{OccurrenceID: 999999, ReporterID: owner.ID, Kind: model.InteractionExisting, CreatedAt: time.Now().UTC()},
		nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing occurrence err = %v", err)
	}
}

func TestTrustedAnswers(t *testing.T) {
	truncateAll(t)
	owner := seedUser(t)
	voter := seedUser(t)
	_, o := seedOccurrence(t, owner, 1, 1, time.Hour)
	repo := NewOccurrenceRepo(testDB)
	users := NewUserRepo(testDB)

	for _, k := range []model.InteractionKind{model.InteractionNonExisting, model.InteractionFinalized} {
		in := &model.Interaction{OccurrenceID: o.ID, ReporterID: voter.ID, Kind: k, CreatedAt: time.Now().UTC()}
		if _, _, err := repo.RecordInteraction(context.Background(), in, nil); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := users.IncrementTrustedAnswers(context.Background(), o.ID); err != nil {
		t.Fatalf("IncrementTrustedAnswers: %v", err)
	}
	got, _ := users.GetByID(context.Background(), voter.ID)
	if got.TrustedAnswerCount != 1 {
		t.Fatalf("trusted = %d, want 1 for one distinct reporter", got.TrustedAnswerCount)
	}
	other, _ := users.GetByID(context.Background(), owner.ID)
	if other.TrustedAnswerCount != 0 {
		t.Fatalf("owner trusted = %d", other.TrustedAnswerCount)
	}
}

func TestTypeRepo_DeleteReferenced(t *testing.T) {
	truncateAll(t)
	owner := seedUser(t)
	typ, _ := seedOccurrence(t, owner, 1, 1, time.Hour)

	if err := NewTypeRepo(testDB).Delete(context.Background(), typ.ID); !errors.Is(err, ErrReferenced) {
		t.Fatalf("err = %v, want ErrReferenced", err)
	}
	if err := NewUserRepo(testDB).Delete(context.Background(), owner.ID); !errors.Is(err, ErrReferenced) {
		t.Fatalf("user delete err = %v, want ErrReferenced", err)
	}
}

func TestOccurrenceRepo_Expire(t *testing.T) {
	truncateAll(t)
	owner := seedUser(t)
	_, o := seedOccurrence(t, owner, 1, 1, time.Second)
	_, fresh := seedOccurrence(t, owner, 2, 2, time.Hour)
	repo := NewOccurrenceRepo(testDB)
	later := time.Now().UTC().Add(time.Minute)

	expired, err := repo.ExpireIfOverdue(context.Background(), o.ID, later)
	if err != nil || !expired {
		t.Fatalf("first expire = %v, %v", expired, err)
	}
	expired, err = repo.ExpireIfOverdue(context.Background(), o.ID, later)
	if err != nil || expired {
		t.Fatalf("second expire = %v, %v", expired, err)
	}
	if expired, _ := repo.ExpireIfOverdue(context.Background(), fresh.ID, later); expired {
		t.Fatal("occurrence before its deadline must stay active")
	}
	n, err := repo.ExpireOverdue(context.Background(), later.Add(2*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
}

func TestOccurrenceRepo_ListInBox(t *testing.T) {
	truncateAll(t)
	owner := seedUser(t)
	_, in := seedOccurrence(t, owner, 5, 5, time.Hour)
	_, edge := seedOccurrence(t, owner, 10, 10, time.Hour)
	seedOccurrence(t, owner, 15, 0, time.Hour)

	got, err := NewOccurrenceRepo(testDB).ListInBox(context.Background(),
		geo.Box{SouthWest: geo.Point{Lat: 0, Lng: 0}, NorthEast: geo.Point{Lat: 10, Lng: 10}}, nil)
	if err != nil {
		t.Fatalf("ListInBox: %v", err)
	}
	ids := map[uint64]bool{}
	for _, o := range got {
		ids[o.ID] = true
	}
	if len(got) != 2 || !ids[in.ID] || !ids[edge.ID] {
		t.Fatalf("got %v", ids)
	}
}
