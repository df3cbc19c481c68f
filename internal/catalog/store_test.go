package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func sampleDocument() *Document {
	return &Document{
		Version:     1,
		LastUpdated: "2026-08-01",
		Images: []Image{
			{
				ID:          "ubuntu-24.04-lts",
				Name:        "Ubuntu 24.04 LTS Desktop",
				Version:     "24.04",
				Category:    CategoryUbuntu,
				DownloadURL: "https://releases.ubuntu.com/24.04/ubuntu-24.04.1-desktop-amd64.iso",
				SizeBytes:   6_100_000_000,
				SizeHuman:   "5.7 GB",
				Description: "Long-term support release",
				Verified:    true,
				Popularity:  90,
			},
			{
				ID:          "fedora-41",
				Name:        "Fedora 41 Workstation",
				Version:     "41",
				Category:    CategoryFedora,
				DownloadURL: "https://download.fedoraproject.org/fedora-41.iso",
				SizeBytes:   2_100_000_000,
				SizeHuman:   "2.0 GB",
				Description: "Latest Fedora release",
				Verified:    true,
				Popularity:  60,
			},
			{
				ID:          "debian-12",
				Name:        "Debian 12 Bookworm",
				Version:     "12.8.0",
				Category:    CategoryDebian,
				DownloadURL: "https://cdimage.debian.org/debian-12.8.0-amd64-netinst.iso",
				SizeBytes:   650_000_000,
				SizeHuman:   "650 MB",
				Description: "Stable universal OS",
				Verified:    true,
				Popularity:  70,
			},
		},
	}
}

func TestReplaceAndListImages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceImages(ctx, sampleDocument()); err != nil {
		t.Fatalf("ReplaceImages: %v", err)
	}

	all, err := store.ListImages(ctx, "")
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListImages returned %d entries, want 3", len(all))
	}
	if all[0].ID != "ubuntu-24.04-lts" {
		t.Errorf("first image = %s, want most popular first", all[0].ID)
	}

	fedora, err := store.ListImages(ctx, CategoryFedora)
	if err != nil {
		t.Fatalf("ListImages(fedora): %v", err)
	}
	if len(fedora) != 1 || fedora[0].ID != "fedora-41" {
		t.Errorf("ListImages(fedora) = %+v", fedora)
	}

	count, err := store.CountImages(ctx)
	if err != nil || count != 3 {
		t.Errorf("CountImages = %d, %v; want 3", count, err)
	}
}

func TestReplaceImagesIsFullSwap(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceImages(ctx, sampleDocument()); err != nil {
		t.Fatalf("ReplaceImages: %v", err)
	}
	smaller := &Document{Version: 2, Images: sampleDocument().Images[:1]}
	if err := store.ReplaceImages(ctx, smaller); err != nil {
		t.Fatalf("ReplaceImages second: %v", err)
	}

	count, err := store.CountImages(ctx)
	if err != nil || count != 1 {
		t.Fatalf("CountImages after swap = %d, %v; want 1", count, err)
	}
}

func TestSearchImages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.ReplaceImages(ctx, sampleDocument()); err != nil {
		t.Fatalf("ReplaceImages: %v", err)
	}

	hits, err := store.SearchImages(ctx, "BOOKWORM")
	if err != nil {
		t.Fatalf("SearchImages: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "debian-12" {
		t.Errorf("SearchImages(BOOKWORM) = %+v", hits)
	}

	none, err := store.SearchImages(ctx, "plan9")
	if err != nil {
		t.Fatalf("SearchImages: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("SearchImages(plan9) = %+v, want empty", none)
	}
}

func TestImageByID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.ReplaceImages(ctx, sampleDocument()); err != nil {
		t.Fatalf("ReplaceImages: %v", err)
	}

	image, err := store.ImageByID(ctx, "fedora-41")
	if err != nil {
		t.Fatalf("ImageByID: %v", err)
	}
	if image.Name != "Fedora 41 Workstation" || !image.Verified {
		t.Errorf("ImageByID = %+v", image)
	}

	if _, err := store.ImageByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ImageByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestMirrors(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.ReplaceImages(ctx, sampleDocument()); err != nil {
		t.Fatalf("ReplaceImages: %v", err)
	}

	for _, m := range []Mirror{
		{ImageID: "debian-12", URL: "https://mirror-b.example/debian.iso", Region: "EU", Priority: 2, Status: "ok"},
		{ImageID: "debian-12", URL: "https://mirror-a.example/debian.iso", Region: "US", Priority: 1, Status: "ok"},
	} {
		if err := store.AddMirror(ctx, m); err != nil {
			t.Fatalf("AddMirror: %v", err)
		}
	}

	mirrors, err := store.MirrorsFor(ctx, "debian-12")
	if err != nil {
		t.Fatalf("MirrorsFor: %v", err)
	}
	if len(mirrors) != 2 || mirrors[0].URL != "https://mirror-a.example/debian.iso" {
		t.Fatalf("MirrorsFor = %+v, want priority order", mirrors)
	}

	if err := store.SetMirrorStatus(ctx, mirrors[1].ID, "unreachable"); err != nil {
		t.Fatalf("SetMirrorStatus: %v", err)
	}
	mirrors, err = store.MirrorsFor(ctx, "debian-12")
	if err != nil {
		t.Fatalf("MirrorsFor: %v", err)
	}
	if mirrors[1].Status != "unreachable" {
		t.Errorf("mirror status = %q, want unreachable", mirrors[1].Status)
	}
}

func TestUserImages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	image := UserImage{
		ID:        "user-custom",
		Name:      "custom.img",
		LocalPath: "/home/user/images/custom.img",
		SizeBytes: 1024,
		AddedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := store.AddUserImage(ctx, image); err != nil {
		t.Fatalf("AddUserImage: %v", err)
	}

	images, err := store.ListUserImages(ctx)
	if err != nil {
		t.Fatalf("ListUserImages: %v", err)
	}
	if len(images) != 1 || images[0].LocalPath != image.LocalPath {
		t.Fatalf("ListUserImages = %+v", images)
	}

	if err := store.RemoveUserImage(ctx, "user-custom"); err != nil {
		t.Fatalf("RemoveUserImage: %v", err)
	}
	if err := store.RemoveUserImage(ctx, "user-custom"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveUserImage twice = %v, want ErrNotFound", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.ReplaceImages(context.Background(), sampleDocument()); err != nil {
		t.Fatalf("ReplaceImages: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	count, err := second.CountImages(context.Background())
	if err != nil || count != 3 {
		t.Fatalf("CountImages after reopen = %d, %v; want 3", count, err)
	}
}
