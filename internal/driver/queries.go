package driver

// Entities are keyed by exact name. Relationships are RELATES_TO edges carrying the canonical label in
// their relation property, so one (subject, relation, object) pair maps to at most one edge.
const (
	CreateEntityQuery = `
		MERGE (n:Entity {name: $name})
		ON CREATE SET n.id = $id,
			n.entity_type = $entity_type,
			n.source_document_id = $source_document_id,
			n.confidence = $confidence,
			n.mention_count = $mention_count,
			n.created_at = $created_at
		ON MATCH SET n.mention_count = coalesce(n.mention_count, 0) + $mention_count
		RETURN n.id AS id, n.name AS name, n.entity_type AS entity_type,
			n.source_document_id AS source_document_id, n.confidence AS confidence, n.created_at AS created_at
	`

	FindOrCreateEntitiesQuery = `
		UNWIND $entities AS e
		MERGE (n:Entity {name: e.name})
		ON CREATE SET n.id = e.id,
			n.entity_type = e.entity_type,
			n.source_document_id = e.source_document_id,
			n.confidence = e.confidence,
			n.mention_count = e.mention_count,
			n.created_at = e.created_at
		ON MATCH SET n.mention_count = coalesce(n.mention_count, 0) + e.mention_count
		RETURN n.name AS name, n.id AS id
	`

	GetEntitiesByNameQuery = `
		MATCH (n:Entity {name: $name})
		RETURN n.id AS id, n.name AS name, n.entity_type AS entity_type,
			n.source_document_id AS source_document_id, n.confidence AS confidence, n.created_at AS created_at
	`

	GetEntityByIDQuery = `
		MATCH (n:Entity {id: $id})
		RETURN n.id AS id, n.name AS name, n.entity_type AS entity_type,
			n.source_document_id AS source_document_id, n.confidence AS confidence, n.created_at AS created_at
	`

	ListEntitiesQuery = `
		MATCH (n:Entity)
		WHERE size($entity_types) = 0 OR n.entity_type IN $entity_types
		RETURN n.id AS id, n.name AS name, n.entity_type AS entity_type,
			n.source_document_id AS source_document_id, n.confidence AS confidence, n.created_at AS created_at
		ORDER BY n.id
	`

	CreateRelationshipQuery = `
		MATCH (s:Entity {id: $subject_id})
		MATCH (o:Entity {id: $object_id})
		MERGE (s)-[r:RELATES_TO {relation: $relation}]->(o)
		ON CREATE SET r.id = $id
		SET r += $properties
		RETURN r.id AS id
	`

	BatchCreateRelationshipsQuery = `
		UNWIND $relationships AS rel
		MATCH (s:Entity {id: rel.subject_id})
		MATCH (o:Entity {id: rel.object_id})
		MERGE (s)-[r:RELATES_TO {relation: rel.relation}]->(o)
		ON CREATE SET r.id = rel.id
		SET r += rel.properties
		RETURN count(r) AS persisted
	`

	GetRelationshipsQuery = `
		MATCH (n:Entity {id: $id})-[r:RELATES_TO]-(:Entity)
		RETURN DISTINCT r.id AS id, startNode(r).id AS subject_id, r.relation AS relation,
			endNode(r).id AS object_id, properties(r) AS properties
		ORDER BY id
	`

	GetNeighborsQuery = `
		MATCH (n:Entity {id: $id})-[:RELATES_TO]-(m:Entity)
		WHERE m.id <> $id
		RETURN DISTINCT m.id AS id, m.name AS name, m.entity_type AS entity_type,
			m.source_document_id AS source_document_id, m.confidence AS confidence, m.created_at AS created_at
		ORDER BY name, id
	`

	GetRelatedQuery = `
		MATCH (n:Entity {id: $id})-[:RELATES_TO]-(:Entity)-[:RELATES_TO]-(m:Entity)
		WHERE m.id <> $id AND NOT (n)-[:RELATES_TO]-(m)
		RETURN DISTINCT m.id AS id, m.name AS name, m.entity_type AS entity_type,
			m.source_document_id AS source_document_id, m.confidence AS confidence, m.created_at AS created_at
		ORDER BY name, id
	`
)
