package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// MongoRecordStore хранит записи о платах в коллекции MongoDB
type MongoRecordStore struct {
	coll *mongo.Collection
}

// NewMongoRecordStore оборачивает готовую коллекцию
func NewMongoRecordStore(coll *mongo.Collection) *MongoRecordStore {
	return &MongoRecordStore{coll: coll}
}

// ConnectMongo подключается к серверу и проверяет соединение
func ConnectMongo(ctx context.Context, uri, database, collection string) (*mongo.Client, *MongoRecordStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, NewMongoRecordStore(client.Database(database).Collection(collection)), nil
}

// EnsureIndexes создаёт уникальный индекс по штрихкоду
func (s *MongoRecordStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "barcode", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create barcode index: %w", err)
	}
	return nil
}

// UpdateVerdict выполняет одно атомарное обновление конвейером агрегации:
// last_updated меняется только если вердикт отличается от сохранённого.
func (s *MongoRecordStore) UpdateVerdict(ctx context.Context, barcode string, verdict entity.Verdict, at time.Time) (entity.UpdateOutcome, error) {
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "barcode", Value: barcode}}, verdictUpdate(verdict, at))
	if err != nil {
		return entity.UpdateOutcome{}, fmt.Errorf("update verdict: %w", err)
	}
	return entity.UpdateOutcome{
		Matched:  res.MatchedCount > 0,
		Modified: res.ModifiedCount > 0,
	}, nil
}

func verdictUpdate(verdict entity.Verdict, at time.Time) mongo.Pipeline {
	unchanged := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{"$quality_status", literal(verdict.QualityStatus)}}},
		bson.D{{Key: "$eq", Value: bson.A{"$defect_type", literal(verdict.DefectType)}}},
	}}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "last_updated", Value: bson.D{{Key: "$cond", Value: bson.A{
				unchanged, "$last_updated", literal(entity.FormatTimestamp(at)),
			}}}},
			{Key: "quality_status", Value: literal(verdict.QualityStatus)},
			{Key: "defect_type", Value: literal(verdict.DefectType)},
		}}},
	}
}

// literal экранирует значения, которые MongoDB иначе мог бы принять за путь поля
func literal(v any) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

// FindByBarcode читает запись по штрихкоду
func (s *MongoRecordStore) FindByBarcode(ctx context.Context, barcode string) (*entity.ScanRecord, error) {
	var record entity.ScanRecord
	err := s.coll.FindOne(ctx, bson.D{{Key: "barcode", Value: barcode}}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return &record, nil
}

// TouchScan ставит last_scanned_at и возвращает запись после обновления
func (s *MongoRecordStore) TouchScan(ctx context.Context, barcode string, at time.Time) (*entity.ScanRecord, error) {
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "last_scanned_at", Value: entity.FormatTimestamp(at)}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var record entity.ScanRecord
	err := s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "barcode", Value: barcode}}, update, opts).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("touch record: %w", err)
	}
	return &record, nil
}

// List выбирает записи для мониторинга
func (s *MongoRecordStore) List(ctx context.Context, filter entity.RecordFilter) ([]entity.ScanRecord, error) {
	filter = filter.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "last_updated", Value: -1}}).
		SetLimit(int64(filter.Limit))

	cur, err := s.coll.Find(ctx, listQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	records := make([]entity.ScanRecord, 0, filter.Limit)
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return records, nil
}

func listQuery(filter entity.RecordFilter) bson.D {
	query := bson.D{}
	if filter.ShiftID != "" {
		query = append(query, bson.E{Key: "shift_id", Value: filter.ShiftID})
	}
	if filter.QualityStatus != "" {
		query = append(query, bson.E{Key: "quality_status", Value: filter.QualityStatus})
	}
	if filter.DefectType != "" {
		query = append(query, bson.E{Key: "defect_type", Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(filter.DefectType)},
			{Key: "$options", Value: "i"},
		}})
	}
	return query
}

// Stats считает документы по статусам
func (s *MongoRecordStore) Stats(ctx context.Context) (entity.QualityStats, error) {
	var stats entity.QualityStats
	var err error

	if stats.Total, err = s.coll.CountDocuments(ctx, bson.D{}); err != nil {
		return stats, fmt.Errorf("count records: %w", err)
	}
	if stats.Defective, err = s.coll.CountDocuments(ctx, bson.D{{Key: "quality_status", Value: entity.StatusDefective}}); err != nil {
		return stats, fmt.Errorf("count defective: %w", err)
	}
	if stats.NoDefect, err = s.coll.CountDocuments(ctx, bson.D{{Key: "quality_status", Value: entity.StatusNoDefect}}); err != nil {
		return stats, fmt.Errorf("count no_defect: %w", err)
	}
	return stats, nil
}

// ReplaceAll удаляет все документы и вставляет новые
func (s *MongoRecordStore) ReplaceAll(ctx context.Context, records []entity.ScanRecord) (int, error) {
	if _, err := s.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return 0, fmt.Errorf("clear collection: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(records))
	for _, r := range records {
		docs = append(docs, r)
	}
	res, err := s.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert records: %w", err)
	}
	return len(res.InsertedIDs), nil
}

// Проверка реализации интерфейса
var _ port.RecordStore = (*MongoRecordStore)(nil)
