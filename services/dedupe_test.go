package services

import (
	"fmt"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"immo-scraper/models"
)

func TestDedupe(t *testing.T) {
	Convey("Given records with repeated identity keys", t, func() {
		records := []models.NormalizedRecord{
			{ID: "a", URL: "u1"},
			{ID: "b", URL: "u2"},
			{ID: "c", URL: "u1"},
			{ID: "d", URL: "u3"},
			{ID: "e", URL: "u2"},
		}

		out := Dedupe(records, IdentityKey)

		Convey("The first occurrence of every key is kept in input order", func() {
			So(ids(out), ShouldResemble, []string{"a", "b", "d"})
		})

		Convey("The input is left untouched", func() {
			So(len(records), ShouldEqual, 5)
		})
	})

	Convey("Given random input sequences", t, func() {
		rng := rand.New(rand.NewSource(42))

		for round := 0; round < 50; round++ {
			n := rng.Intn(40)
			records := make([]models.NormalizedRecord, n)
			for i := range records {
				records[i] = models.NormalizedRecord{
					ID:  fmt.Sprintf("id-%d", i),
					URL: fmt.Sprintf("u%d", rng.Intn(10)),
				}
			}

			out := Dedupe(records, IdentityKey)

			So(len(out), ShouldBeLessThanOrEqualTo, len(records))

			firstIndex := make(map[string]int)
			for i, r := range records {
				if _, ok := firstIndex[r.URL]; !ok {
					firstIndex[r.URL] = i
				}
			}

			seen := make(map[string]bool)
			for _, r := range out {
				So(seen[r.URL], ShouldBeFalse)
				seen[r.URL] = true
				So(r.ID, ShouldEqual, fmt.Sprintf("id-%d", firstIndex[r.URL]))
			}
			So(len(seen), ShouldEqual, len(firstIndex))
		}
	})

	Convey("Given raw records", t, func() {
		Convey("The raw key prefers the trimmed url and falls back to the id", func() {
			So(RawIdentityKey(models.RawRecord{ID: "x", URL: " u "}), ShouldEqual, "u")
			So(RawIdentityKey(models.RawRecord{ID: " x "}), ShouldEqual, "x")
		})
	})
}
