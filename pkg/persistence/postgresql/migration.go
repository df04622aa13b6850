package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Manuscript aggregate stored as one document; revision is the CAS counter.
			CREATE TABLE manuscripts (
				id VARCHAR(64) PRIMARY KEY,
				status VARCHAR(64) NOT NULL,
				submitter_id VARCHAR(255) NOT NULL,
				version_number INT NOT NULL CHECK (version_number >= 1),
				document JSONB NOT NULL,
				revision BIGINT NOT NULL,
				submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_manuscripts_status ON manuscripts(status);
			CREATE INDEX idx_manuscripts_submitter_id ON manuscripts(submitter_id);
			CREATE INDEX idx_manuscripts_submitted_at ON manuscripts(submitted_at);
			CREATE INDEX idx_manuscripts_reviewers ON manuscripts USING GIN ((document->'assigned_reviewers'));

			CREATE TABLE outbox_events (
				id VARCHAR(64) PRIMARY KEY,
				aggregate_id VARCHAR(64) NOT NULL,
				event_type VARCHAR(128) NOT NULL,
				payload JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_outbox_events_unpublished ON outbox_events(created_at) WHERE published_at IS NULL;
		`,
		2: `
			CREATE TABLE notifications (
				id VARCHAR(64) PRIMARY KEY,
				recipient_id VARCHAR(255) NOT NULL,
				type VARCHAR(128) NOT NULL,
				title TEXT NOT NULL,
				message TEXT NOT NULL,
				metadata JSONB,
				seen BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				created_at_client TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_notifications_recipient ON notifications(recipient_id, created_at DESC);

			CREATE TABLE users (
				id VARCHAR(255) PRIMARY KEY,
				role VARCHAR(32) NOT NULL CHECK (role IN ('Admin', 'Researcher', 'Peer Reviewer')),
				email VARCHAR(320),
				display_name VARCHAR(255)
			);

			CREATE INDEX idx_users_role ON users(role);

			CREATE TABLE settings (
				key VARCHAR(128) PRIMARY KEY,
				value JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}
