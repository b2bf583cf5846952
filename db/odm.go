package db

import (
	"github.com/SaiNageswarS/go-api-boot/odm"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func odmCollection(client *mongo.Client, tenant string) odm.OdmCollectionInterface[ChunkDoc] {
	return odm.CollectionOf[ChunkDoc](client, tenant)
}

func odmVectorParams(k, numCandidates int) odm.VectorSearchParams {
	return odm.VectorSearchParams{
		IndexName:     VectorIndexName,
		Path:          VectorPath,
		K:             k,
		NumCandidates: numCandidates,
	}
}
