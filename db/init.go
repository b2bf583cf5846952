package db

import (
	"context"

	"github.com/SaiNageswarS/go-api-boot/odm"
)

// InitTenantDB ensures the tenant's collections and search indexes exist.
// Safe to call repeatedly.
func InitTenantDB(ctx context.Context, mongo odm.MongoClient, tenant string) error {
	return odm.EnsureIndexes[ChunkDoc](ctx, mongo, tenant)
}
