package postgres

func selectQuery(tableName string) string {
	return `SELECT owner_id, id, payload, updated_at FROM ` + tableName + ` WHERE owner_id = $1 AND id = $2;`
}

func upsertQuery(tableName string) string {
	return `INSERT INTO ` + tableName + ` (owner_id, id, payload, updated_at) ` +
		`VALUES (:owner_id, :id, :payload, :updated_at) ` +
		`ON CONFLICT (owner_id, id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at;`
}

func deleteQuery(tableName string) string {
	return `DELETE FROM ` + tableName + ` WHERE owner_id = $1 AND id = $2 RETURNING owner_id, id, payload, updated_at;`
}
