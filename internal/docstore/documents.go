package docstore

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the native document identifier.
const IDField = "_id"

// Flatten converts a stored document into plain string fields. The native
// identifier is rendered as its hex form.
func Flatten(document bson.M) map[string]string {
	out := make(map[string]string, len(document))
	for key, value := range document {
		out[key] = stringValue(value)
	}
	return out
}

// Document converts string fields into an insertable document.
func Document(fields map[string]string) bson.M {
	doc := make(bson.M, len(fields))
	for key, value := range fields {
		if key == IDField {
			continue
		}
		doc[key] = value
	}
	return doc
}

// KeyFilter matches one record of an identifier either by its native id or by
// the surrogate field used where no native id exists.
func KeyFilter(identifierField, identifier, surrogateField, key string) bson.M {
	alternatives := bson.A{bson.M{surrogateField: key}}
	if oid, err := primitive.ObjectIDFromHex(key); err == nil {
		alternatives = append(alternatives, bson.M{IDField: oid})
	}
	return bson.M{identifierField: identifier, "$or": alternatives}
}

func idString(id interface{}) string {
	if id == nil {
		return ""
	}
	return stringValue(id)
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
