package zone

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.GetZone("nope"); err != ErrZoneNotFound {
		t.Fatalf("未注册 zone 应返回 ErrZoneNotFound, 实际 %v", err)
	}
}

func TestRegistryUpsertEmptyID(t *testing.T) {
	r := NewRegistry()
	if err := r.UpsertZone(Zone{}); err != ErrEmptyID {
		t.Fatalf("空 id 应报错, 实际 %v", err)
	}
}

func TestRegistryUpsertAndGet(t *testing.T) {
	r := NewRegistry()
	z := Zone{ID: "apac", Name: "APAC", StabilityDeviation: decimal.NewFromFloat(0.07)}
	if err := r.UpsertZone(z); err != nil {
		t.Fatalf("upsert 失败: %v", err)
	}

	got, err := r.GetZone("apac")
	if err != nil {
		t.Fatalf("get 失败: %v", err)
	}
	if got.Name != "APAC" || !got.StabilityDeviation.Equal(z.StabilityDeviation) {
		t.Fatalf("zone 内容不一致: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt 应被填充")
	}

	// replace
	z.Name = "Asia Pacific"
	if err := r.UpsertZone(z); err != nil {
		t.Fatalf("replace 失败: %v", err)
	}
	got, _ = r.GetZone("apac")
	if got.Name != "Asia Pacific" {
		t.Fatalf("replace 未生效: %s", got.Name)
	}
}

func TestRegistryListOrdered(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		if err := r.UpsertZone(Zone{ID: id}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	zones := r.ListZones()
	if len(zones) != 3 {
		t.Fatalf("期望 3 个 zone, 实际 %d", len(zones))
	}
	if zones[0].ID != "a" || zones[1].ID != "b" || zones[2].ID != "c" {
		t.Fatalf("应按 id 排序: %+v", zones)
	}
}

func TestDefaultZonesSeeded(t *testing.T) {
	r := NewRegistryWithDefaults()
	for _, id := range []string{"global_primary", "global_secondary", "global_volatile", "global_stable", "emergency_throttle"} {
		if _, err := r.GetZone(id); err != nil {
			t.Fatalf("默认 zone %s 缺失: %v", id, err)
		}
	}

	emergency, _ := r.GetZone("emergency_throttle")
	if emergency.StabilityDeviation.Abs().LessThanOrEqual(emergency.TargetRange.MaxDeviation) {
		t.Fatal("emergency zone 偏差应超出上界")
	}
}

func TestRegistryConcurrentReadWrite(t *testing.T) {
	r := NewRegistryWithDefaults()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = r.GetZone("global_primary")
				_ = r.ListZones()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.UpsertZone(Zone{ID: "global_primary", Name: "Global Primary Market"})
			}
		}()
	}
	wg.Wait()
}
