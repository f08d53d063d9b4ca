package postgresql

// History rows are written by the application inside the phase-change
// transaction; no SQL trigger duplicates them.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE orchepy_workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				phases JSONB NOT NULL,
				initial_phase VARCHAR(255) NOT NULL,
				webhook_url TEXT,
				automations JSONB,
				sla_config JSONB,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_orchepy_workflows_active ON orchepy_workflows(active);
			CREATE INDEX idx_orchepy_workflows_created_at ON orchepy_workflows(created_at);

			CREATE TABLE orchepy_cases (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES orchepy_workflows(id) ON DELETE CASCADE,
				current_phase VARCHAR(255) NOT NULL,
				previous_phase VARCHAR(255),
				data JSONB NOT NULL DEFAULT '{}'::jsonb,
				status VARCHAR(20) NOT NULL CHECK (status IN ('active', 'completed', 'failed', 'paused')),
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				phase_entered_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_orchepy_cases_workflow_id ON orchepy_cases(workflow_id);
			CREATE INDEX idx_orchepy_cases_status ON orchepy_cases(status);
			CREATE INDEX idx_orchepy_cases_current_phase ON orchepy_cases(current_phase);

			CREATE TABLE orchepy_case_history (
				id UUID PRIMARY KEY,
				case_id UUID NOT NULL REFERENCES orchepy_cases(id) ON DELETE CASCADE,
				from_phase VARCHAR(255),
				to_phase VARCHAR(255) NOT NULL,
				reason TEXT,
				triggered_by VARCHAR(255),
				transitioned_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_orchepy_case_history_case_id ON orchepy_case_history(case_id);
			CREATE INDEX idx_orchepy_case_history_transitioned_at ON orchepy_case_history(transitioned_at);
		`,
	}
}
